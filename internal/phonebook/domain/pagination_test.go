package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePageRequest(t *testing.T) {
	tests := []struct {
		name      string
		page      string
		size      string
		want      PageRequest
		wantError string
	}{
		{name: "defaults", want: PageRequest{Page: 1, Size: 2}},
		{name: "explicit", page: "3", size: "5", want: PageRequest{Page: 3, Size: 5}},
		{name: "non-integer page falls back", page: "abc", size: "4", want: PageRequest{Page: 1, Size: 4}},
		{name: "negative page kept for clamping", page: "-2", want: PageRequest{Page: -2, Size: 2}},
		{name: "non-integer size", size: "two", wantError: "'result_size' must be a valid integer."},
		{name: "zero size", size: "0", wantError: "'result_size' must be greater than 0."},
		{name: "negative size", size: "-1", wantError: "'result_size' must be greater than 0."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePageRequest(tt.page, tt.size)
			if tt.wantError != "" {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrValidation))
				var de *Error
				require.True(t, errors.As(err, &de))
				assert.Equal(t, tt.wantError, de.Details["result_size"])
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTotalPages(t *testing.T) {
	assert.Equal(t, 1, TotalPages(0, 2))
	assert.Equal(t, 1, TotalPages(2, 2))
	assert.Equal(t, 2, TotalPages(3, 2))
	assert.Equal(t, 4, TotalPages(10, 3))
	assert.Equal(t, 1, TotalPages(10, 0))
}

func TestPaginate(t *testing.T) {
	items := []string{"alice", "alicia", "malice"}

	p := Paginate(items, PageRequest{Page: 1, Size: 2})
	assert.Equal(t, []string{"alice", "alicia"}, p.Results)
	assert.Equal(t, 1, p.CurrentPage)
	assert.Equal(t, 2, p.TotalPages)
	assert.Equal(t, 3, p.TotalResults)
	assert.Equal(t, 2, p.ResultsPerPage)

	p = Paginate(items, PageRequest{Page: 2, Size: 2})
	assert.Equal(t, []string{"malice"}, p.Results)
	assert.Equal(t, 2, p.ResultsPerPage)

	// out of range resolves to the last page
	p = Paginate(items, PageRequest{Page: 9, Size: 2})
	assert.Equal(t, 2, p.CurrentPage)
	assert.Equal(t, []string{"malice"}, p.Results)

	p = Paginate(items, PageRequest{Page: 0, Size: 2})
	assert.Equal(t, 2, p.CurrentPage)
}

func TestPaginateEmpty(t *testing.T) {
	p := Paginate([]string(nil), PageRequest{Page: 3, Size: 2})
	assert.Empty(t, p.Results)
	assert.NotNil(t, p.Results)
	assert.Equal(t, 1, p.CurrentPage)
	assert.Equal(t, 1, p.TotalPages)
	assert.Equal(t, 0, p.TotalResults)
}

func TestPaginateCopiesResults(t *testing.T) {
	items := []int{1, 2, 3}
	p := Paginate(items, PageRequest{Page: 1, Size: 3})
	items[0] = 99
	assert.Equal(t, 1, p.Results[0])
}

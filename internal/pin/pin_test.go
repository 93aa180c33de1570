package pin

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"martianoff/simc/internal/cmr"
)

const (
	hexA = "345c2d7e7da821dcf649ed8611b1e6d21cb94b7fd62ed8631196217cebcd9b3f"
	hexB = "715cdc36705ead8037d6de6adacd674a27eeac18a21cfb5c2cd432e461996431"
)

func mustCMR(t *testing.T, s string) cmr.CMR {
	t.Helper()
	c, err := cmr.Parse(s)
	require.NoError(t, err)
	return c
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []Entry
		wantErr string
	}{
		{name: "Empty", content: ""},
		{name: "Comments and blanks", content: "# pins\n\n  \n"},
		{
			name:    "Entries",
			content: "b.simc " + hexB + "\ncontracts/a.simc " + hexA + "\n",
			want: []Entry{
				{Path: "b.simc", CMR: mustCMR(t, hexB)},
				{Path: "contracts/a.simc", CMR: mustCMR(t, hexA)},
			},
		},
		{
			name:    "Path with spaces",
			content: "my contract.simc\t" + hexA,
			want:    []Entry{{Path: "my contract.simc", CMR: mustCMR(t, hexA)}},
		},
		{name: "Missing cmr", content: "a.simc", wantErr: "simc.sum:1: invalid format"},
		{name: "Bad hex", content: "\na.simc xyz", wantErr: "simc.sum:2: invalid cmr"},
		{name: "Short cmr", content: "a.simc abcd", wantErr: "want 32 bytes"},
		{name: "Duplicate", content: "a.simc " + hexA + "\na.simc " + hexB, wantErr: "simc.sum:2: duplicate pin for a.simc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Parse(tt.content)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				var perr *ParseError
				assert.True(t, errors.As(err, &perr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.Entries)
		})
	}
}

func TestFormat(t *testing.T) {
	f := NewFile()
	assert.Equal(t, "", Format(f))

	f.Set("z.simc", mustCMR(t, hexA))
	f.Set("a.simc", mustCMR(t, hexA))
	f.Set("z.simc", mustCMR(t, hexB))
	assert.Len(t, f.Entries, 2)
	assert.Equal(t, "a.simc "+hexA+"\nz.simc "+hexB+"\n", Format(f))

	again, err := Parse(Format(f))
	require.NoError(t, err)
	assert.Equal(t, Format(f), Format(again))
}

func TestVerify(t *testing.T) {
	f := NewFile()
	f.Set("a.simc", mustCMR(t, hexA))

	assert.NoError(t, f.Verify("a.simc", mustCMR(t, hexA)))

	err := f.Verify("a.simc", mustCMR(t, hexB))
	var mismatch *MismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, mustCMR(t, hexA), mismatch.Want)
	assert.Equal(t, "a.simc: cmr "+hexB+" does not match pinned "+hexA, err.Error())

	err = f.Verify("b.simc", mustCMR(t, hexA))
	var notPinned *NotPinnedError
	require.True(t, errors.As(err, &notPinned))
	assert.EqualError(t, err, "b.simc: not pinned")
}

func TestFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultName)

	f, err := ParseFile(path)
	require.NoError(t, err)
	assert.Empty(t, f.Entries)

	f.Set("a.simc", mustCMR(t, hexA))
	require.NoError(t, WriteFile(f, path))

	got, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, f.Entries, got.Entries)

	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0644))
	_, err = ParseFile(path)
	assert.True(t, strings.HasPrefix(err.Error(), "simc.sum:1:"), err.Error())
}

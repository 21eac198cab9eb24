package clone3

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRevisionForRelease(t *testing.T) {
	tests := []struct {
		release string
		want    Revision
		err     error
	}{
		{"5.15.0-91-generic", RevisionVer2, nil},
		{"6.18.44-fc-v139", RevisionVer2, nil},
		{"5.7", RevisionVer2, nil},
		{"5.6.19", RevisionVer1, nil},
		{"5.5.0-rc1", RevisionVer1, nil},
		{"5.4.0", RevisionVer0, nil},
		{"5.3.18-lp152.19-default", RevisionVer0, nil},
		{"5.10.0.1-custom", RevisionVer2, nil},
		{"4.19.112+", 0, ErrNotSupported},
		{"3.10.0-1160.el7.x86_64", 0, ErrNotSupported},
	}
	for _, tc := range tests {
		t.Run(tc.release, func(t *testing.T) {
			r, err := RevisionForRelease(tc.release)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, r)
		})
	}
}

func TestParseRelease(t *testing.T) {
	v, err := ParseRelease("6.1.0-13-amd64")
	require.NoError(t, err)
	assert.Equal(t, "6.1.0", v.String())

	for release, want := range map[string]string{
		"4.18.0.1":           "4.18.0",
		"5.10.0.1-custom":    "5.10.0",
		"6.8.0.45.46.x86_64": "6.8.0",
		"5.15.0-91-generic":  "5.15.0",
		"6.2":                "6.2.0",
	} {
		v, err := ParseRelease(release)
		require.NoError(t, err, release)
		assert.Equal(t, want, v.String(), release)
	}

	_, err = ParseRelease("generic")
	assert.Error(t, err)
	_, err = ParseRelease("")
	assert.Error(t, err)
}

func TestDetectRevision(t *testing.T) {
	r, err := DetectRevision()
	if err != nil {
		assert.ErrorIs(t, err, ErrNotSupported)
		return
	}
	assert.True(t, r.Valid())
}

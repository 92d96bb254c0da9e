package maildate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Time
	}{
		{
			name:  "numeric offset",
			value: "Mon, 2 Jan 2023 10:00:00 -0500",
			want:  time.Date(2023, 1, 2, 15, 0, 0, 0, time.UTC),
		},
		{
			name:  "no zone is utc",
			value: "Mon, 2 Jan 2023 10:00:00",
			want:  time.Date(2023, 1, 2, 10, 0, 0, 0, time.UTC),
		},
		{
			name:  "no zone without seconds",
			value: "2 Jan 2023 10:00",
			want:  time.Date(2023, 1, 2, 10, 0, 0, 0, time.UTC),
		},
		{
			name:  "utc offset",
			value: "Thu, 29 Sep 2016 23:18:26 +0000",
			want:  time.Date(2016, 9, 29, 23, 18, 26, 0, time.UTC),
		},
		{
			name:  "trailing comment",
			value: "Tue, 11 Jul 2017 18:30:33 +0000 (UTC)",
			want:  time.Date(2017, 7, 11, 18, 30, 33, 0, time.UTC),
		},
		{
			name:  "negative zero offset",
			value: "Sat, 01 Oct 2016 14:47:20 -0000",
			want:  time.Date(2016, 10, 1, 14, 47, 20, 0, time.UTC),
		},
		{
			name:  "single digit hour and doubled space",
			value: "Fri, 9 Nov 2007  1:10:02 -0700 (MST)",
			want:  time.Date(2007, 11, 9, 8, 10, 2, 0, time.UTC),
		},
		{
			name:  "obsolete zone name",
			value: "Wed, 18 Feb 2015 23:59:59 EDT",
			want:  time.Date(2015, 2, 19, 3, 59, 59, 0, time.UTC),
		},
		{
			name:  "gmt",
			value: "Wed, 18 Feb 2015 23:59:59 GMT",
			want:  time.Date(2015, 2, 18, 23, 59, 59, 0, time.UTC),
		},
		{
			name:  "atlantic zone",
			value: "Sat, 31 Dec 2022 22:00:00 AST",
			want:  time.Date(2023, 1, 1, 2, 0, 0, 0, time.UTC),
		},
		{
			name:  "unlisted zone name is utc",
			value: "Sun, 1 Jan 2023 00:30:00 CET",
			want:  time.Date(2023, 1, 1, 0, 30, 0, 0, time.UTC),
		},
		{
			name:  "full weekday",
			value: "Monday, 2 Jan 2023 10:00:00 +0000",
			want:  time.Date(2023, 1, 2, 10, 0, 0, 0, time.UTC),
		},
		{
			name:  "weekday without comma",
			value: "Mon 2 Jan 2023 10:00:00 +0000",
			want:  time.Date(2023, 1, 2, 10, 0, 0, 0, time.UTC),
		},
		{
			name:  "folded header whitespace",
			value: "Mon, 2 Jan 2023\r\n 10:00:00 +0100",
			want:  time.Date(2023, 1, 2, 9, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.value)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "Parse(%q) = %v, want %v", tt.value, got.UTC(), tt.want)
		})
	}
}

func TestParseIgnoresLocalZone(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skipf("zone data unavailable: %v", err)
	}
	saved := time.Local
	time.Local = berlin
	defer func() { time.Local = saved }()

	for _, value := range []string{
		"Sun, 1 Jan 2023 00:30:00 CET",
		"Sun, 1 Jan 2023 00:30:00",
	} {
		ts, err := Parse(value)
		require.NoError(t, err)
		assert.Equal(t, "2023-01", Bucket(ts), value)
	}
}

func TestParseRejects(t *testing.T) {
	for _, value := range []string{
		"",
		"   ",
		"not-a-date",
		"(just a comment)",
		"Mon, 32 Jan 2023 10:00:00 +0000",
		"yesterday",
	} {
		t.Run(value, func(t *testing.T) {
			_, err := Parse(value)
			assert.Error(t, err)
		})
	}
}

func TestParseEmpty(t *testing.T) {
	_, err := Parse("  ")
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestBucket(t *testing.T) {
	tests := []struct {
		value string
		want  string
	}{
		{"2017-06-30T20:00:00+04:00", "2017-06"},
		{"2017-06-30T20:00:00+00:00", "2017-06"},
		{"2017-06-30T20:00:00-04:00", "2017-07"},
		{"2017-07-01T03:59:59+04:00", "2017-06"},
		{"2017-07-01T03:59:59+00:00", "2017-07"},
		{"2017-07-01T03:59:59-04:00", "2017-07"},
		{"0999-03-01T00:00:00Z", "0999-03"},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			ts, err := time.Parse(time.RFC3339, tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, Bucket(ts))
		})
	}
}

func TestBucketFromHeader(t *testing.T) {
	ts, err := Parse("Mon, 2 Jan 2023 10:00:00 -0500")
	require.NoError(t, err)
	assert.Equal(t, "2023-01", Bucket(ts))

	ts, err = Parse("Sat, 31 Dec 2022 22:30:00 -0300")
	require.NoError(t, err)
	assert.Equal(t, "2023-01", Bucket(ts))
}

func TestIsBucket(t *testing.T) {
	assert.True(t, IsBucket(Unknown))
	assert.True(t, IsBucket("2022-12"))
	assert.False(t, IsBucket("2022-13"))
	assert.False(t, IsBucket("2022-1"))
	assert.False(t, IsBucket("misc"))
}

package dao

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Settings struct {
	Theme string   `json:"theme"`
	Tags  []string `json:"tags"`
}

type UserSettings struct {
	ID       int64 `orm:"id=auto"`
	Settings JSONColumn[Settings]
}

func TestJSONColumn(t *testing.T) {
	cases := []struct {
		name    string
		src     any
		want    JSONColumn[Settings]
		wantErr bool
	}{
		{
			name: "string",
			src:  `{"theme":"dark","tags":["a"]}`,
			want: JSONColumn[Settings]{Val: Settings{Theme: "dark", Tags: []string{"a"}}, Valid: true},
		},
		{
			name: "bytes",
			src:  []byte(`{"theme":"light"}`),
			want: JSONColumn[Settings]{Val: Settings{Theme: "light"}, Valid: true},
		},
		{
			name: "null",
			src:  nil,
			want: JSONColumn[Settings]{},
		},
		{
			name:    "invalid type",
			src:     12,
			wantErr: true,
		},
		{
			name:    "invalid json",
			src:     "{",
			wantErr: true,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var js JSONColumn[Settings]
			err := js.Scan(c.src)
			if c.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.want, js)
		})
	}

	val, err := JSONColumn[Settings]{}.Value()
	require.NoError(t, err)
	assert.Nil(t, val)
	val, err = JSONColumn[Settings]{Val: Settings{Theme: "dark"}, Valid: true}.Value()
	require.NoError(t, err)
	assert.Equal(t, `{"theme":"dark","tags":null}`, val)
}

func TestJSONColumn_RoundTrip(t *testing.T) {
	db := memoryDB(t)
	mustExec(t, db, "CREATE TABLE user_settings (id INTEGER PRIMARY KEY AUTOINCREMENT, settings TEXT)")
	ctx := context.Background()

	m, err := NewMapper[UserSettings](db)
	require.NoError(t, err)
	us := &UserSettings{Settings: JSONColumn[Settings]{Val: Settings{Theme: "dark", Tags: []string{"x", "y"}}, Valid: true}}
	require.NoError(t, m.Insert(ctx, us).Err())
	empty := &UserSettings{}
	require.NoError(t, m.Insert(ctx, empty).Err())

	got, err := m.GetByID(ctx, us.ID)
	require.NoError(t, err)
	assert.Equal(t, us, got)
	got, err = m.GetByID(ctx, empty.ID)
	require.NoError(t, err)
	assert.False(t, got.Settings.Valid)
}

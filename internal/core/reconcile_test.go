package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReconcile(t *testing.T) {
	tests := []struct {
		name   string
		record Record
		width  int
		want   Record
	}{
		{name: "truncate", record: Record{"a", "b", "c", "d"}, width: 2, want: Record{"a", "b"}},
		{name: "pad", record: Record{"a"}, width: 3, want: Record{"a", "", ""}},
		{name: "equal", record: Record{"a", "b"}, width: 2, want: Record{"a", "b"}},
		{name: "empty record", record: Record{}, width: 2, want: Record{"", ""}},
		{name: "nil record", record: nil, width: 1, want: Record{""}},
		{name: "zero width", record: Record{"a"}, width: 0, want: Record{}},
		{name: "negative width", record: Record{"a"}, width: -1, want: Record{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Reconcile(tt.record, tt.width))
		})
	}
}

func TestReconcile_LengthAndIdempotence(t *testing.T) {
	for n := 0; n <= 6; n++ {
		rec := make(Record, n)
		for i := range rec {
			rec[i] = string(rune('a' + i))
		}
		for w := 0; w <= 6; w++ {
			once := Reconcile(rec, w)
			assert.Len(t, once, w, "len(Reconcile(%d fields, %d))", n, w)
			assert.Equal(t, once, Reconcile(once, w), "Reconcile not idempotent for n=%d w=%d", n, w)
		}
	}
}

func TestReconcile_DoesNotAlias(t *testing.T) {
	rec := Record{"a", "b"}
	out := Reconcile(rec, 2)
	out[0] = "changed"
	assert.Equal(t, "a", rec[0])
}

package core

// Reconcile forces record to exactly width fields. Longer records are
// truncated, shorter ones padded with empty strings. The result never shares
// storage with record. A negative width is treated as zero.
func Reconcile(record Record, width int) Record {
	if width < 0 {
		width = 0
	}
	out := make(Record, width)
	copy(out, record)
	return out
}

// ReconcileAll applies Reconcile to every record.
func ReconcileAll(records []Record, width int) []Record {
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = Reconcile(r, width)
	}
	return out
}

// Package pagination tracks offset/limit windows over a server-reported total.
//
// The posts endpoint reports the number of available records in the
// X-WP-Total header. A Cursor advances by one page size per completed fetch
// and is exhausted once the offset reaches that total. A missing header
// counts as a total of 0, so a single fetch exhausts the cursor.
//
// Example usage:
//
//	cur, _ := pagination.NewCursor(0, 10)
//	// after each successful fetch:
//	cur.Advance()
//	cur.Observe(page.Total)
//	if cur.Exhausted() {
//		// stop offering further fetches
//	}
//
// Drain repeats a step function until it reports completion, which is how
// the widget loads every remaining page in one call.
package pagination

package reactive

// Tx collects signal writes so they propagate as one update.
// A Tx is only valid inside the Batch call that created it.
type Tx struct {
	p    *propagation
	done bool
}

func (tx *Tx) active() bool {
	return tx != nil && !tx.done
}

// Batch runs fn and propagates every write made through tx when fn
// returns. Derived nodes recompute once with all writes visible.
// Subscribers of a signal still receive every value written to it.
//
// Example:
//
//	reactive.Batch(func(tx *reactive.Tx) {
//	    first.SetTx(tx, "John")
//	    last.SetTx(tx, "Doe")
//	})
//
// If fn panics, writes already applied stay applied but are not
// propagated.
func Batch(fn func(tx *Tx)) {
	tx := &Tx{p: newPropagation()}
	fn(tx)
	tx.done = true
	tx.p.flush()
}

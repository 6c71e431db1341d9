package quiver

// Bitmap is one entity's component membership vector. Bit i is set iff the
// entity currently holds component type i; the final bit is reserved and
// encodes the entity's active state. The vector grows as component types are
// registered, relocating the reserved bit to the new end.
type Bitmap struct {
	words []uint64
	n     int
}

func NewBitmap(n int) Bitmap {
	return Bitmap{
		words: make([]uint64, (n+63)/64),
		n:     n,
	}
}

// Len returns the number of bits, component type count plus the reserved
// active bit.
func (b *Bitmap) Len() int {
	return b.n
}

// Test reports whether bit i is set.
func (b *Bitmap) Test(i int) bool {
	return b.words[i>>6]&(1<<(i&63)) != 0
}

// Set assigns bit i.
func (b *Bitmap) Set(i int, value bool) {
	if value {
		b.words[i>>6] |= 1 << (i & 63)
	} else {
		b.words[i>>6] &^= 1 << (i & 63)
	}
}

// Active reports the reserved trailing bit.
func (b *Bitmap) Active() bool {
	return b.Test(b.n - 1)
}

// SetActive assigns the reserved trailing bit.
func (b *Bitmap) SetActive(value bool) {
	b.Set(b.n-1, value)
}

// Grow extends the bitmap to n bits, relocating the reserved trailing bit.
// Growing to the current size or smaller is a no-op.
func (b *Bitmap) Grow(n int) {
	if n <= b.n {
		return
	}

	active := b.Active()
	b.SetActive(false)

	for len(b.words) < (n+63)/64 {
		b.words = append(b.words, 0)
	}
	b.n = n

	b.SetActive(active)
}

// Reset clears every bit, including the reserved one, and resizes the bitmap
// to n bits.
func (b *Bitmap) Reset(n int) {
	words := (n + 63) / 64
	if cap(b.words) < words {
		b.words = make([]uint64, words)
	} else {
		b.words = b.words[:words]
		for i := range b.words {
			b.words[i] = 0
		}
	}
	b.n = n
}

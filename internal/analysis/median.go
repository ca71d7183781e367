package analysis

// Median returns the median luminance of v. It reorders v in place.
//
// For an odd count this is the middle order statistic. For an even count
// it is the mean of v[n/2] and the largest of v[0:n/2-1] after selection;
// index n/2-1 is not part of that range, so the result can sit below the
// textbook median. Existing analysis files were produced with this formula
// and comparisons against them depend on it. When the range is empty
// (n == 2) v[0] is used.
func Median(v []byte) float32 {
	n := len(v)
	if n == 0 {
		return 0
	}
	middle := n / 2
	SelectNth(v, middle)
	median := float32(v[middle])

	if n&1 == 1 {
		return median
	}

	lower := v[:middle-1]
	if len(lower) == 0 {
		lower = v[:middle]
	}
	return (median + float32(maxByte(lower))) / 2
}

// SelectNth partially orders v so that v[k] holds the value it would have
// if v were sorted, every element before it is <= v[k] and every element
// after it is >= v[k].
//
// It is an iterative quickselect with a median-of-three pivot value and
// three-way partitioning, so runs of equal pixels (flat image regions)
// finish in linear time.
func SelectNth(v []byte, k int) {
	if k < 0 || k >= len(v) {
		return
	}
	lo, hi := 0, len(v)-1
	for lo < hi {
		pivot := medianOfThree(v[lo], v[lo+(hi-lo)/2], v[hi])

		// v[lo:lt] < pivot, v[lt:i] == pivot, v[gt+1:hi+1] > pivot
		lt, i, gt := lo, lo, hi
		for i <= gt {
			switch {
			case v[i] < pivot:
				v[lt], v[i] = v[i], v[lt]
				lt++
				i++
			case v[i] > pivot:
				v[i], v[gt] = v[gt], v[i]
				gt--
			default:
				i++
			}
		}

		switch {
		case k < lt:
			hi = lt - 1
		case k > gt:
			lo = gt + 1
		default:
			return
		}
	}
}

func medianOfThree(a, b, c byte) byte {
	if a > b {
		a, b = b, a
	}
	if b > c {
		b = c
	}
	if a > b {
		return a
	}
	return b
}

func maxByte(v []byte) byte {
	m := v[0]
	for _, b := range v[1:] {
		if b > m {
			m = b
		}
	}
	return m
}

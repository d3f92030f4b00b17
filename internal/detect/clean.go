package detect

// Connectivity convention: flooded regions are 8-connected; the enclosed
// gaps between them are 4-connected, the topological dual. Both Clean
// operations and the vectorizer label with the same rule, so a region that
// survives cleaning is exactly one traced polygon.

// Clean removes connected flooded regions smaller than minRegionPx and fills
// enclosed not-flooded gaps of at most holeFillPx pixels. Unknown pixels are
// never reclassified: they block hole filling and do not count toward any
// region or gap size. Clean is idempotent and does not modify its input.
func Clean(m *Mask, minRegionPx, holeFillPx int) *Mask {
	out := m.Clone()
	removeSmallRegions(out, minRegionPx)
	fillSmallHoles(out, holeFillPx)
	return out
}

// LabelFlooded assigns a 1-based label to every 8-connected flooded region.
// Non-flooded and unknown pixels get label 0. Labels are issued in row-major
// order of each region's first pixel, so labeling is deterministic.
func LabelFlooded(m *Mask) ([]int32, int) {
	labels := make([]int32, len(m.Values))
	next := int32(0)
	var stack []int

	for start, v := range m.Values {
		if v != Flooded || labels[start] != 0 {
			continue
		}
		next++
		labels[start] = next
		stack = append(stack[:0], start)
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			r, c := i/m.Width, i%m.Width
			for dr := -1; dr <= 1; dr++ {
				for dc := -1; dc <= 1; dc++ {
					if dr == 0 && dc == 0 {
						continue
					}
					nr, nc := r+dr, c+dc
					if nr < 0 || nr >= m.Height || nc < 0 || nc >= m.Width {
						continue
					}
					j := nr*m.Width + nc
					if m.Values[j] == Flooded && labels[j] == 0 {
						labels[j] = next
						stack = append(stack, j)
					}
				}
			}
		}
	}
	return labels, int(next)
}

func removeSmallRegions(m *Mask, minRegionPx int) {
	if minRegionPx <= 1 {
		return
	}
	labels, count := LabelFlooded(m)
	sizes := make([]int, count+1)
	for _, l := range labels {
		sizes[l]++
	}
	for i, l := range labels {
		if l != 0 && sizes[l] < minRegionPx {
			m.Values[i] = NotFlooded
		}
	}
}

// fillSmallHoles reclassifies enclosed 4-connected not-flooded gaps of at
// most holeFillPx pixels to flooded. A gap touching the grid edge is open,
// not a hole; a gap adjacent to an unknown pixel is left alone because its
// true extent cannot be established.
func fillSmallHoles(m *Mask, holeFillPx int) {
	if holeFillPx <= 0 {
		return
	}
	visited := make([]bool, len(m.Values))
	var component, stack []int

	for start, v := range m.Values {
		if v != NotFlooded || visited[start] {
			continue
		}

		component = component[:0]
		stack = append(stack[:0], start)
		visited[start] = true
		enclosed := true

		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			component = append(component, i)
			r, c := i/m.Width, i%m.Width
			if r == 0 || r == m.Height-1 || c == 0 || c == m.Width-1 {
				enclosed = false
			}
			for _, d := range [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
				nr, nc := r+d[0], c+d[1]
				if nr < 0 || nr >= m.Height || nc < 0 || nc >= m.Width {
					continue
				}
				j := nr*m.Width + nc
				switch m.Values[j] {
				case Unknown:
					enclosed = false
				case NotFlooded:
					if !visited[j] {
						visited[j] = true
						stack = append(stack, j)
					}
				}
			}
		}

		if enclosed && len(component) <= holeFillPx {
			for _, i := range component {
				m.Values[i] = Flooded
			}
		}
	}
}

package levels

// naturalLess compares two names treating digit runs as numbers, so
// "2-foo" sorts before "10-foo". Longer digit runs win after leading
// zeros are skipped; equal numbers fall back to the longer literal run.
func naturalLess(a, b string) bool {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		ca, cb := a[i], b[j]
		if isDigit(ca) && isDigit(cb) {
			ia, ja := i, j
			for ia < len(a) && a[ia] == '0' {
				ia++
			}
			for ja < len(b) && b[ja] == '0' {
				ja++
			}
			ea, eb := ia, ja
			for ea < len(a) && isDigit(a[ea]) {
				ea++
			}
			for eb < len(b) && isDigit(b[eb]) {
				eb++
			}
			if la, lb := ea-ia, eb-ja; la != lb {
				return la < lb
			}
			if na, nb := a[ia:ea], b[ja:eb]; na != nb {
				return na < nb
			}
			i, j = ea, eb
			continue
		}
		if ca != cb {
			return ca < cb
		}
		i++
		j++
	}
	return len(a)-i < len(b)-j
}

func isDigit(c byte) bool { return '0' <= c && c <= '9' }

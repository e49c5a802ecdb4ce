package pathmatch

// Any はパスがパターンのいずれかにマッチするかを判定する。
// 最初にマッチしたパターンで打ち切る（論理OR）。
// パスの正規化（末尾スラッシュ、大文字小文字、パーセントエンコード）は
// 行わず、文字列をそのまま比較する。
func Any(path string, patterns []string) bool {
	for _, pattern := range patterns {
		if Match(pattern, path) {
			return true
		}
	}
	return false
}

// Match はfnmatch形式のglobパターンとパスを照合する。
//
//   - `*` は `/` を含む任意の文字列（空文字列を含む）にマッチする
//   - `?` は任意の1文字にマッチする
//   - `[seq]` は文字集合、`[^seq]` はその否定にマッチする
//
// 不正なパターン（閉じられていない文字集合など）はマッチしない扱いとする。
func Match(pattern, name string) bool {
	// 反復 + バックトラックによる照合。
	// starIdx は直近の `*` のパターン位置、starName はその時点の名前位置。
	px, nx := 0, 0
	starIdx, starName := -1, 0

	for nx < len(name) {
		if px < len(pattern) {
			switch pattern[px] {
			case '*':
				starIdx = px
				starName = nx
				px++
				continue
			case '?':
				px++
				nx++
				continue
			case '[':
				ok, next := matchClass(pattern, px, name[nx])
				if next > 0 && ok {
					px = next
					nx++
					continue
				}
				// 文字集合にマッチしない、またはパターンが不正
			default:
				if pattern[px] == name[nx] {
					px++
					nx++
					continue
				}
			}
		}

		// 直近の `*` に1文字余計に食わせて再試行する
		if starIdx >= 0 {
			starName++
			px = starIdx + 1
			nx = starName
			continue
		}
		return false
	}

	// 名前を消費し終えた後、残りのパターンは `*` のみ許される
	for px < len(pattern) && pattern[px] == '*' {
		px++
	}
	return px == len(pattern)
}

// matchClass は pattern[start] == '[' とみなして文字集合を照合する。
// マッチ結果と、集合の終端 `]` の次の位置を返す。
// 集合が閉じられていない場合は next=0 を返す。
func matchClass(pattern string, start int, ch byte) (matched bool, next int) {
	i := start + 1
	negate := false
	if i < len(pattern) && (pattern[i] == '^' || pattern[i] == '!') {
		negate = true
		i++
	}

	found := false
	first := true
	for i < len(pattern) {
		if pattern[i] == ']' && !first {
			if negate {
				return !found, i + 1
			}
			return found, i + 1
		}
		first = false

		// 範囲指定 a-z
		if i+2 < len(pattern) && pattern[i+1] == '-' && pattern[i+2] != ']' {
			if pattern[i] <= ch && ch <= pattern[i+2] {
				found = true
			}
			i += 3
			continue
		}

		if pattern[i] == ch {
			found = true
		}
		i++
	}
	return false, 0
}

package worker

// Range 表示半开区间 [Start, End)。
type Range struct {
	Start int
	End   int
}

// Len 返回区间长度。
func (r Range) Len() int {
	return r.End - r.Start
}

// Partition 将 [0, n) 切分为至多 workers 个连续区间，每块长度为 ceil(n/workers)，最后一块可能更短。
// n 为 0 时返回空切片。
func Partition(n, workers int) []Range {
	if n <= 0 {
		return nil
	}
	workers = max(workers, 1)
	chunk := (n + workers - 1) / workers

	ranges := make([]Range, 0, workers)
	for start := 0; start < n; start += chunk {
		ranges = append(ranges, Range{Start: start, End: min(start+chunk, n)})
	}
	return ranges
}

// PartitionTriangular 按上三角（不含对角线）工作量切分行区间。
// 第 i 行需要计算 n-1-i 个点对，靠前的行更重，因此按累计点对数而不是行数均分。
func PartitionTriangular(n, workers int) []Range {
	if n <= 0 {
		return nil
	}
	workers = max(workers, 1)
	total := n * (n - 1) / 2
	if workers == 1 || total == 0 {
		return []Range{{Start: 0, End: n}}
	}

	ranges := make([]Range, 0, workers)
	start, acc, k := 0, 0, 1
	for row := range n {
		acc += n - 1 - row
		// 达到第 k 份的累计目标即切分。
		if acc*workers >= total*k && k < workers {
			ranges = append(ranges, Range{Start: start, End: row + 1})
			start = row + 1
			for acc*workers >= total*k && k < workers {
				k++
			}
		}
	}
	if start < n {
		ranges = append(ranges, Range{Start: start, End: n})
	}
	return ranges
}

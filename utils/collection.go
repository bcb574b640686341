// Package utils 切片相关的小工具，主要服务于行切分.
package utils

// Filter 保留 keep 返回 true 的元素，原切片不被修改. 没有元素保留时返回 nil.
func Filter[T any](items []T, keep func(T) bool) []T {
	var out []T
	for _, v := range items {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}

// Map 逐个转换元素，结果长度与输入一致.
func Map[T, R any](items []T, fn func(T) R) []R {
	out := make([]R, 0, len(items))
	for _, v := range items {
		out = append(out, fn(v))
	}
	return out
}

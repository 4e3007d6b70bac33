package mcpserver

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func clampPageSize(size int) int {
	if size <= 0 {
		return defaultPageSize
	}
	if size > maxPageSize {
		return maxPageSize
	}
	return size
}

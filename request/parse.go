package request

// ParsePathRequest 诊断接口：解析单个压缩包内路径
type ParsePathRequest struct {
	Path string `form:"path" binding:"required"`
}

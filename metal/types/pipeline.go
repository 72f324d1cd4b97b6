package types

// RenderPipelineDescriptor carries the creation parameters for a
// RenderPipelineState: its two shader stages, vertex input layout, and
// attachment formats.
type RenderPipelineDescriptor struct {
	VertexFunctionName   string
	FragmentFunctionName string
	VertexDescriptor     VertexDescriptor
	ColorAttachments     []RenderPipelineColorAttachmentDescriptor
	DepthAttachmentFormat PixelFormat
	HasDepthAttachment    bool
}

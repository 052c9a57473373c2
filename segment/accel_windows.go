package segment

// hostPipeline is the accelerated pipeline this build can run
const hostPipeline = PipelineAcceleratedWindows

// hostSurface names the texture handle type the runtime receives
const hostSurface = "d3d11-texture"

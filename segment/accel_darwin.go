package segment

// hostPipeline is the accelerated pipeline this build can run
const hostPipeline = PipelineAcceleratedDarwin

// hostSurface names the texture handle type the runtime receives
const hostSurface = "iosurface"

//go:build !windows && !darwin

package segment

// hostPipeline is the accelerated pipeline this build can run. No
// accelerated backend exists on this platform.
const hostPipeline Pipeline = -1

// hostSurface names the texture handle type the runtime receives
const hostSurface = ""

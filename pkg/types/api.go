package types

// AnalyzeRequest is the payload accepted by POST /analyze.
type AnalyzeRequest struct {
	// Base64-encoded image bytes (JPEG, PNG, GIF, BMP, TIFF or WebP).
	ImageBase64 string `json:"image_base64"`
	// Optional prompt. When empty the server default prompt is used.
	// example: Describe the clothing in this photo.
	Prompt string `json:"prompt,omitempty" example:"Describe the clothing in this photo."`
	// Translate the analysis into Russian.
	// example: false
	Translate bool `json:"translate,omitempty" example:"false"`
}

// Garment is the clothing type extracted from an analysis.
type Garment struct {
	// example: dress
	ClassName string `json:"class_name" example:"dress"`
	// example: Платье
	ClassNameRu string `json:"class_name_ru" example:"Платье"`
}

// AnalyzeResponse is returned by POST /analyze.
type AnalyzeResponse struct {
	Success bool `json:"success" example:"true"`
	// Cleaned model output.
	Analysis string `json:"analysis,omitempty"`
	// Error message when success is false.
	Error string `json:"error,omitempty"`
	// Model type that produced the analysis.
	// example: qwen2
	ModelUsed string `json:"model_used,omitempty" example:"qwen2"`
	// example: cuda
	Device      string   `json:"device,omitempty" example:"cuda"`
	Garment     *Garment `json:"garment,omitempty"`
	Translation string   `json:"translation,omitempty"`
	// Wall time spent in the generation call.
	// example: 5230
	DurationMS int64 `json:"duration_ms,omitempty" example:"5230"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	// example: healthy
	Status      string  `json:"status" example:"healthy"`
	ModelLoaded bool    `json:"model_loaded" example:"true"`
	Timestamp   float64 `json:"timestamp" example:"1700000000.5"`
	// example: cuda
	Device string `json:"device" example:"cuda"`
	// Inference engine version. The field name is part of the public wire format.
	// example: 0.11.10
	TorchVersion string `json:"torch_version" example:"0.11.10"`
	Error        string `json:"error,omitempty"`
}

// LoadResponse is returned by GET /load.
type LoadResponse struct {
	CPUPercent    float64 `json:"cpu_percent" example:"12.5"`
	MemoryPercent float64 `json:"memory_percent" example:"43.1"`
	MemoryUsedGB  float64 `json:"memory_used_gb" example:"6.9"`
	MemoryTotalGB float64 `json:"memory_total_gb" example:"16"`
	Timestamp     float64 `json:"timestamp" example:"1700000000.5"`
}

// GPUResponse is returned by GET /gpu.
type GPUResponse struct {
	GPUAvailable bool   `json:"gpu_available" example:"true"`
	Message      string `json:"message,omitempty"`
	Error        string `json:"error,omitempty"`
	// example: NVIDIA GeForce RTX 3060
	GPUName            string  `json:"gpu_name,omitempty" example:"NVIDIA GeForce RTX 3060"`
	MemoryAllocatedMB  float64 `json:"gpu_memory_allocated_mb,omitempty" example:"3120.5"`
	MemoryReservedMB   float64 `json:"gpu_memory_reserved_mb,omitempty" example:"3500"`
	MemoryTotalMB      float64 `json:"gpu_memory_total_mb,omitempty" example:"12288"`
	Device             string  `json:"device" example:"cuda"`
}

// ModelResponse is returned by GET /model.
type ModelResponse struct {
	Loaded  bool   `json:"loaded" example:"true"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	// example: qwen2
	ModelName     string `json:"model_name,omitempty" example:"qwen2"`
	Device        string `json:"device,omitempty" example:"cuda"`
	ContextLength int    `json:"context_length,omitempty" example:"8192"`
	// Weight precision or quantization reported by the engine.
	// example: Q4_K_M
	TorchDtype string `json:"torch_dtype,omitempty" example:"Q4_K_M"`
	ModelPath  string `json:"model_path,omitempty" example:"checkpoints/llava-fastvithd_1.5b_stage3"`
	// example: ollama
	Backend string `json:"backend,omitempty" example:"ollama"`
}

// ErrorResponse is a consistent JSON error payload for non-analysis routes.
type ErrorResponse struct {
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// example: 400
	Code int `json:"code" example:"400"`
}

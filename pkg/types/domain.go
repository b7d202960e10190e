package types

// Checkpoint describes a model checkpoint directory on disk.
type Checkpoint struct {
	// Checkpoint name, taken from the directory name.
	// example: llava-fastvithd_1.5b_stage3
	Name string `json:"name" example:"llava-fastvithd_1.5b_stage3"`
	// Absolute path to the checkpoint directory.
	// example: /opt/ml-fastvlm/checkpoints/llava-fastvithd_1.5b_stage3
	Dir string `json:"dir" example:"/opt/ml-fastvlm/checkpoints/llava-fastvithd_1.5b_stage3"`
	// Language model weights (GGUF).
	// example: /opt/ml-fastvlm/checkpoints/llava-fastvithd_1.5b_stage3/fastvlm-1.5b-Q4_K_M.gguf
	ModelFile string `json:"model_file" example:"/opt/ml-fastvlm/checkpoints/llava-fastvithd_1.5b_stage3/fastvlm-1.5b-Q4_K_M.gguf"`
	// Vision projector weights (GGUF), empty when the checkpoint has none.
	// example: /opt/ml-fastvlm/checkpoints/llava-fastvithd_1.5b_stage3/mmproj-fastvlm-1.5b-f16.gguf
	ProjectorFile string `json:"projector_file,omitempty" example:"/opt/ml-fastvlm/checkpoints/llava-fastvithd_1.5b_stage3/mmproj-fastvlm-1.5b-f16.gguf"`
	// Quantization parsed from the model file name.
	// example: Q4_K_M
	Quant string `json:"quant,omitempty" example:"Q4_K_M"`
}

package compiler

// fallbackWidgetNames is the static, best-effort widget ordering for
// well-known node types, used when the server schema is unavailable.
// The schema always wins when present; this table tolerates running
// against a server we cannot introspect.
func fallbackWidgetNames(classType string) []string {
	return widgetNameTable[classType]
}

var widgetNameTable = map[string][]string{
	// Core nodes.
	"LoadImage":              {"image", "upload"},
	"CheckpointLoaderSimple": {"ckpt_name"},
	"CLIPTextEncode":         {"text"},
	"KSampler":               {"seed", "control_after_generate", "steps", "cfg", "sampler_name", "scheduler", "denoise"},
	"EmptyLatentImage":       {"width", "height", "batch_size"},
	"VAEDecode":              {},
	"SaveImage":              {"filename_prefix"},
	"PreviewImage":           {},
	"UpscaleModelLoader":     {"model_name"},
	"ImageCompositeMasked":   {"x", "y", "resize_source"},

	// Hunyuan3D family.
	"Hy3DModelLoader":               {"model", "attention_mode", "use_fp8"},
	"Hy3DCameraConfig":              {"camera_azimuths", "camera_elevations", "view_weights", "camera_distance", "ortho_scale"},
	"Hy3DExportMesh":                {"filename_prefix", "file_format", "embed_textures"},
	"Hy3DPostprocessMesh":           {"smooth_normals", "remove_degenerate_faces", "max_facenum", "reduce_faces", "remove_floaters"},
	"Hy3DVAEDecode":                 {"box_v", "mc_level", "num_chunks", "octree_resolution", "mc_algo"},
	"Hy3DRenderMultiView":           {"render_size", "texture_size"},
	"Hy3DDiffusersSchedulerConfig":  {"scheduler", "sigmas"},
	"Hy3DSampleMultiView":           {"seed", "steps", "cfg", "embedded_guidance", "denoise", "tile_size", "tile_stride"},
	"Hy3DDelightImage":              {},
	"Hy3DGenerateMesh":              {},
	"Hy3DMeshUVWrap":                {},
	"Hy3DApplyTexture":              {},
	"DownloadAndLoadHy3DPaintModel": {"model"},
	"CV2InpaintTexture":             {"inpaint_method", "inpaint_radius"},

	// Essentials / background removal.
	"ImageResize+":           {"width", "height", "method", "interpolation", "condition", "multiple_of"},
	"ImageRemoveBackground+": {"model", "alpha_matting", "alpha_matting_foreground_threshold", "alpha_matting_background_threshold", "alpha_matting_erode_size", "post_process_mask"},

	// TripoSG family.
	"TripoSGLoader":        {},
	"TripoSGSampler":       {"seed", "seed_mode"},
	"TripoSGMeshExtractor": {"mc_level", "edge_threshold"},
	"TripoSGSaveMesh":      {"filename_prefix", "file_format"},
	"Preview3D":            {"model_file", "image", "width", "height"},
}

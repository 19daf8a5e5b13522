package vulkan

/**
 * @brief Number of descriptor sets bound per draw: uniform buffers (set 0),
 * combined image samplers (set 1) and input attachments (set 2).
 */
const DescriptorSetCount = 3

/** @brief Uniform buffer bindings available in set 0. */
const UniformBindingCount = 4

/** @brief Combined image sampler bindings available in set 1. */
const SamplerBindingCount = 8

/** @brief Input attachment bindings available in set 2. */
const TargetBindingCount = 1

/** @brief Max vertex attributes (and vertex buffer bindings) per vertex array. */
const MaxVertexAttributeCount = 8

/**
 * @brief Default number of pipelines the binder keeps before evicting the
 * oldest one. Overridden by renderer.pipeline_cache_capacity.
 */
const DefaultPipelineCacheCapacity = 64

/**
 * @brief Default number of descriptor bundles (one set per slot above) the
 * binder keeps. Overridden by renderer.descriptor_cache_capacity.
 */
const DefaultDescriptorCacheCapacity = 64

/** @brief Vertices in the full-screen quad used by the depth resolve. */
const quadVertexCount = 4

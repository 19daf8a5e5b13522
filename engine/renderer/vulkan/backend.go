package vulkan

import (
	"runtime"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-blit/engine/core"
)

const (
	LoaderSystem = "system"
	LoaderGLFW   = "glfw"

	validationLayerName = "VK_LAYER_KHRONOS_validation"
	surfaceColorFormat  = vk.FormatR8g8b8a8Unorm
)

type VulkanRendererConfig struct {
	AppName string
	// Where vkGetInstanceProcAddr comes from: the system Vulkan library or GLFW.
	Loader     string
	Validation bool
	// With Headless unset the default render target is handled as if it
	// were presented: blit sources are moved back to an attachment layout.
	Headless bool

	Width   uint32
	Height  uint32
	Samples uint32

	PipelineCacheCapacity   int
	DescriptorCacheCapacity int
	CheckBlitFormat         bool
}

/**
 * @brief A renderer without presentation: it owns the instance, the device,
 * an offscreen default render target and the blitter recording into it.
 */
type VulkanRenderer struct {
	config  VulkanRendererConfig
	context *VulkanContext

	surface *VulkanSwapContext
	binder  *VulkanBinder
	blitter *VulkanBlitter
	fence   *VulkanFence

	FrameNumber uint64

	glfwInitialized bool
}

func New(config VulkanRendererConfig) *VulkanRenderer {
	if config.Loader == "" {
		config.Loader = LoaderSystem
	}
	if config.PipelineCacheCapacity == 0 {
		config.PipelineCacheCapacity = DefaultPipelineCacheCapacity
	}
	if config.DescriptorCacheCapacity == 0 {
		config.DescriptorCacheCapacity = DefaultDescriptorCacheCapacity
	}
	return &VulkanRenderer{
		config: config,
		context: &VulkanContext{
			Allocator: nil,
			Device: &VulkanDevice{
				GraphicsQueueIndex: -1,
				TransferQueueIndex: -1,
			},
		},
	}
}

func (vr *VulkanRenderer) Initialize() error {
	if err := vr.loadVulkan(); err != nil {
		return err
	}
	if err := vr.createInstance(); err != nil {
		return err
	}

	if vr.config.Validation {
		core.LogDebug("Creating Vulkan debugger...")
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
			PNext:       nil,
		}
		var dbg vk.DebugReportCallback
		if err := vk.Error(vk.CreateDebugReportCallback(vr.context.Instance, &debugCreateInfo, nil, &dbg)); err != nil {
			core.LogError("vk.CreateDebugReportCallback failed with %s", err)
			return errors.Wrap(err, "vkCreateDebugReportCallback")
		}
		vr.context.debugMessenger = dbg
		core.LogDebug("Vulkan debugger created.")
	}

	requirements := &VulkanPhysicalDeviceRequirements{
		Graphics:    true,
		Transfer:    true,
		DiscreteGPU: false,
		MinSamples:  vr.config.Samples,
	}
	if err := DeviceCreate(vr.context, requirements); err != nil {
		core.LogError("Failed to create device: %s", err)
		return err
	}

	surface, err := SwapContextCreate(vr.context, vr.config.Width, vr.config.Height, surfaceColorFormat)
	if err != nil {
		return err
	}
	surface.Headless = vr.config.Headless
	vr.surface = surface

	if vr.fence, err = NewFence(vr.context, false); err != nil {
		return err
	}

	vr.binder, err = NewVulkanBinder(vr.context, vr.config.PipelineCacheCapacity, vr.config.DescriptorCacheCapacity)
	if err != nil {
		return err
	}
	vr.blitter = NewVulkanBlitter(vr.context, vr.binder, vr.surface, BlitterOptions{
		CheckBlitFormat: vr.config.CheckBlitFormat,
	})

	if err := vr.Submit(func(cmd *VulkanCommandBuffer) error {
		vr.surface.Prime(cmd)
		return nil
	}); err != nil {
		return err
	}

	core.LogInfo("Vulkan renderer initialized successfully.")
	return nil
}

func (vr *VulkanRenderer) Shutdown() error {
	if vr.context.IsValid() {
		vk.DeviceWaitIdle(vr.context.Device.LogicalDevice)
	}

	if vr.blitter != nil {
		vr.blitter.Shutdown()
		vr.blitter = nil
	}
	if vr.binder != nil {
		vr.binder.Shutdown()
		vr.binder = nil
	}
	if vr.fence != nil {
		vr.fence.FenceDestroy(vr.context)
		vr.fence = nil
	}
	if vr.surface != nil {
		vr.surface.SwapContextDestroy(vr.context)
		vr.surface = nil
	}

	core.LogDebug("Destroying Vulkan device...")
	DeviceDestroy(vr.context)

	if vr.context.debugMessenger != vk.NullDebugReportCallback {
		core.LogDebug("Destroying Vulkan debugger...")
		vk.DestroyDebugReportCallback(vr.context.Instance, vr.context.debugMessenger, vr.context.Allocator)
		vr.context.debugMessenger = vk.NullDebugReportCallback
	}

	if vr.context.Instance != nil {
		core.LogDebug("Destroying Vulkan instance...")
		vk.DestroyInstance(vr.context.Instance, vr.context.Allocator)
		vr.context.Instance = nil
	}

	if vr.glfwInitialized {
		glfw.Terminate()
		vr.glfwInitialized = false
	}
	return nil
}

func (vr *VulkanRenderer) Context() *VulkanContext {
	return vr.context
}

func (vr *VulkanRenderer) Surface() *VulkanSwapContext {
	return vr.surface
}

func (vr *VulkanRenderer) Blitter() *VulkanBlitter {
	return vr.blitter
}

func (vr *VulkanRenderer) Binder() *VulkanBinder {
	return vr.binder
}

/**
 * @brief Records into a fresh single use command buffer, submits it to the
 * graphics queue and waits for it to finish. Objects the binder evicted
 * during earlier recordings are released afterwards.
 * @param record Appends commands. Nothing is submitted when it returns an error.
 */
func (vr *VulkanRenderer) Submit(record func(cmd *VulkanCommandBuffer) error) error {
	if !vr.context.IsValid() {
		return core.ErrDeviceMissing
	}
	pool := vr.context.Device.GraphicsCommandPool
	cmd, err := AllocateAndBeginSingleUse(vr.context, pool)
	if err != nil {
		return err
	}
	if vr.binder != nil {
		vr.binder.Reset()
	}

	if err := record(cmd); err != nil {
		cmd.End()
		cmd.Free(vr.context, pool)
		return err
	}
	if err := cmd.EndSingleUse(vr.context, pool, vr.context.Device.GraphicsQueue, vr.fence); err != nil {
		return err
	}

	vr.FrameNumber++
	if vr.binder != nil {
		vr.binder.CollectGarbage()
	}
	return nil
}

/**
 * @brief Returns the highest sample count not above requested that the
 * device supports for both color and depth attachments.
 */
func (vr *VulkanRenderer) SupportedSamples(requested uint32) uint32 {
	supported := vr.context.Device.FramebufferSampleCounts
	for samples := requested; samples > 1; samples >>= 1 {
		if supported&vk.SampleCountFlags(samples) != 0 {
			return samples
		}
	}
	return 1
}

func (vr *VulkanRenderer) loadVulkan() error {
	switch vr.config.Loader {
	case LoaderGLFW:
		if err := glfw.Init(); err != nil {
			core.LogError("failed to initialize glfw: %s", err)
			return errors.Wrap(err, "glfw.Init")
		}
		vr.glfwInitialized = true
		if !glfw.VulkanSupported() {
			return errors.New("glfw reports that Vulkan is not supported")
		}
		procAddr := glfw.GetVulkanGetInstanceProcAddress()
		if procAddr == nil {
			core.LogError("GetInstanceProcAddress is nil")
			return errors.New("GetInstanceProcAddress is nil")
		}
		vk.SetGetInstanceProcAddr(procAddr)
	case LoaderSystem:
		if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
			core.LogError("failed to load the Vulkan library: %s", err)
			return errors.Wrap(err, "loading the Vulkan library")
		}
	default:
		return errors.Wrapf(core.ErrInvalidConfig, "unknown Vulkan loader %q", vr.config.Loader)
	}

	if err := vk.Init(); err != nil {
		core.LogError("failed to initialize vk: %s", err)
		return errors.Wrap(err, "vk.Init")
	}
	return nil
}

func (vr *VulkanRenderer) createInstance() error {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 0, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(vr.config.AppName),
		PEngineName:        VulkanSafeString("Anima Blit"),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	requiredExtensions := []string{}
	if runtime.GOOS == "darwin" {
		requiredExtensions = append(requiredExtensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		createInfo.Flags |= 1
	}
	if vr.config.Validation {
		requiredExtensions = append(requiredExtensions, vk.ExtDebugReportExtensionName)
	}
	core.LogDebug("Required extensions: %v", requiredExtensions)
	createInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(requiredExtensions)

	requiredLayers := []string{}
	if vr.config.Validation {
		core.LogInfo("Validation layers enabled. Enumerating...")
		requiredLayers = append(requiredLayers, validationLayerName)

		var availableLayerCount uint32
		if err := vk.Error(vk.EnumerateInstanceLayerProperties(&availableLayerCount, nil)); err != nil {
			return errors.Wrap(err, "vkEnumerateInstanceLayerProperties")
		}
		availableLayers := make([]vk.LayerProperties, availableLayerCount)
		if err := vk.Error(vk.EnumerateInstanceLayerProperties(&availableLayerCount, availableLayers)); err != nil {
			return errors.Wrap(err, "vkEnumerateInstanceLayerProperties")
		}

		for _, required := range requiredLayers {
			found := false
			for j := range availableLayers {
				availableLayers[j].Deref()
				end := FindFirstZeroInByteArray(availableLayers[j].LayerName[:])
				if required == string(availableLayers[j].LayerName[:end]) {
					found = true
					break
				}
			}
			if !found {
				core.LogError("Required validation layer is missing: %s", required)
				return errors.Newf("validation layer %s is not available", required)
			}
		}
		core.LogInfo("All required validation layers are present.")
	}
	createInfo.EnabledLayerCount = uint32(len(requiredLayers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(requiredLayers)

	var instance vk.Instance
	if res := vk.CreateInstance(&createInfo, vr.context.Allocator, &instance); res != vk.Success {
		core.LogError("failed in creating the Vulkan Instance with error `%s`", VulkanResultString(res, true))
		return errors.Wrap(vk.Error(res), "vkCreateInstance")
	}
	if err := vk.InitInstance(instance); err != nil {
		core.LogError(err.Error())
		return errors.Wrap(err, "vk.InitInstance")
	}
	vr.context.Instance = instance

	core.LogInfo("Vulkan Instance created.")
	return nil
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportDebugBit) != 0:
		core.LogDebug("DEBUG: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogInfo("INFORMATION: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}

package metal

import (
	"crypto/sha256"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	vk "github.com/goki/vulkan"

	"github.com/driftwood-gpu/metalvk/metal/types"
	"github.com/driftwood-gpu/metalvk/translator"
)

// FunctionInfo is a Library's per-entry-point metadata: its kind, ordered
// binding list, and any embedded samplers already materialized into
// SamplerStates.
type FunctionInfo struct {
	FunctionType    types.FunctionType
	Bindings        []types.Binding
	EmbeddedSamplers []*SamplerState
}

// Library is a translated SPIR-V module plus a name-indexed function table.
type Library struct {
	ID uuid.UUID

	device *Device
	module vk.ShaderModule

	functions map[string]*FunctionInfo
}

// libraryTranslationGroup deduplicates concurrent NewLibrary calls over
// identical bytes, since translation is pure and its result is safe to
// share.
var libraryTranslationGroup singleflight.Group

// NewLibrary invokes the translator once over bytes (hashed to dedupe
// concurrent identical translations), creates a Vulkan shader module over
// the resulting SPIR-V, and materializes a SamplerState for every embedded
// sampler the translator reported.
func (d *Device) NewLibrary(bytes []byte) (*Library, error) {
	const op = "NewLibrary"

	sum := sha256.Sum256(bytes)
	key := string(sum[:])

	resultAny, err, _ := libraryTranslationGroup.Do(key, func() (interface{}, error) {
		return translator.Translate(bytes)
	})
	if err != nil {
		return nil, newError(op, KindTranslation, err)
	}
	result := resultAny.(*translator.Result)

	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(result.SPIRV) * 4),
		PCode:    result.SPIRV,
	}
	createInfo.Deref()

	var module vk.ShaderModule
	if res := vk.CreateShaderModule(d.logicalDevice, &createInfo, nil, &module); res != vk.Success {
		return nil, newError(op, KindAllocationFailed, fmt.Errorf("vkCreateShaderModule: %d", res))
	}

	lib := &Library{
		ID:        uuid.New(),
		device:    d,
		module:    module,
		functions: make(map[string]*FunctionInfo, len(result.Functions)),
	}

	for name, fn := range result.Functions {
		info := &FunctionInfo{FunctionType: fn.Type, Bindings: fn.Bindings}
		for _, es := range fn.EmbeddedSamplers {
			sampler, err := d.NewSamplerState(es.Descriptor)
			if err != nil {
				return nil, newError(op, KindInitializationFailed, err)
			}
			info.EmbeddedSamplers = append(info.EmbeddedSamplers, sampler)
		}
		lib.functions[name] = info
	}

	return lib, nil
}

// Function is a named entry point bound to a Library's shader module and
// FunctionInfo.
type Function struct {
	Name    string
	Library *Library
	Info    *FunctionInfo
}

// NewFunction returns a Function bound to name's metadata entry, or an
// error if the library has no such function.
func (l *Library) NewFunction(name string) (*Function, error) {
	info, ok := l.functions[name]
	if !ok {
		return nil, newError("NewFunction", KindInvalidUsage, fmt.Errorf("no function named %q", name))
	}
	return &Function{Name: name, Library: l, Info: info}, nil
}

// Destroy destroys the library's shader module and every materialized
// embedded sampler.
func (l *Library) Destroy() {
	for _, fn := range l.functions {
		for _, s := range fn.EmbeddedSamplers {
			s.Destroy()
		}
	}
	vk.DestroyShaderModule(l.device.logicalDevice, l.module, nil)
}

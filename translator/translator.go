// Package translator parses a Metal library binary and emits a conforming
// SPIR-V module exposing the function entry points, binding decorations,
// and the lowered instruction stream of each function (see package lower
// for what the lowering covers; it does not reconstruct control flow).
package translator

import (
	"fmt"

	"github.com/driftwood-gpu/metalvk/metal/types"
	"github.com/driftwood-gpu/metalvk/translator/air"
	"github.com/driftwood-gpu/metalvk/translator/container"
	"github.com/driftwood-gpu/metalvk/translator/lower"
	"github.com/driftwood-gpu/metalvk/translator/spirv"
)

// FunctionResult is one translated function's binding metadata, handed
// back to the Runtime so it can build FunctionInfo without depending on
// this package's internal types.
type FunctionResult struct {
	Type             types.FunctionType
	Bindings         []types.Binding
	EmbeddedSamplers []EmbeddedSampler
}

// EmbeddedSampler is a sampler literal baked into the shader, to be
// materialized into a concrete SamplerState by the caller.
type EmbeddedSampler struct {
	Descriptor types.SamplerDescriptor
}

// Result is the output of a single Translate call: the finished SPIR-V
// binary and a name-indexed function table.
type Result struct {
	SPIRV     []uint32
	Functions map[string]FunctionResult
}

// Translate parses a Metal library container, lowers every function's AIR
// bitcode to SPIR-V, and finalizes one SPIR-V module exposing all of them
// as entry points.
func Translate(libraryBytes []byte) (*Result, error) {
	lib, err := container.Parse(libraryBytes)
	if err != nil {
		return nil, fmt.Errorf("translator: %w", err)
	}

	builder := spirv.NewBuilder()
	builder.RequireCapability(spirv.CapabilityShader)
	builder.RequireCapability(spirv.CapabilityPhysicalStorageBufferAddresses)

	functions := make(map[string]FunctionResult, len(lib.Functions))

	for _, fn := range lib.Functions {
		fnType := functionTypeFromContainer(fn.Type)

		module, err := air.ModuleFromBitstream(fn.Bitcode)
		if err != nil {
			return nil, fmt.Errorf("translator: function %q: %w", fn.Name, err)
		}

		airFn := &air.Function{
			Name:      fn.Name,
			Type:      airTypeFromFunctionType(fnType),
			Module:    module,
			Arguments: airArgumentsFromContainer(fn.Arguments),
		}
		lowered, err := lower.Lower(builder, airFn)
		if err != nil {
			return nil, fmt.Errorf("translator: function %q: %w", fn.Name, err)
		}
		builder.AppendFunctionWords(lowered.Words)

		model, ok := executionModelFor(fnType)
		if ok {
			builder.AddEntryPoint(model, lowered.FunctionID, fn.Name, lowered.InterfaceIDs)
		}

		bindings, samplers := bindingsFromArguments(fn.Arguments)
		functions[fn.Name] = FunctionResult{Type: fnType, Bindings: bindings, EmbeddedSamplers: samplers}
	}

	return &Result{
		SPIRV:     builder.Finalize(),
		Functions: functions,
	}, nil
}

func functionTypeFromContainer(t container.FunctionType) types.FunctionType {
	return types.FunctionType(t)
}

func airTypeFromFunctionType(t types.FunctionType) air.Type {
	return air.Type(t)
}

func executionModelFor(t types.FunctionType) (spirv.ExecutionModel, bool) {
	switch t {
	case types.FunctionTypeVertex:
		return spirv.ExecutionModelVertex, true
	case types.FunctionTypeFragment:
		return spirv.ExecutionModelFragment, true
	case types.FunctionTypeKernel:
		return spirv.ExecutionModelGLCompute, true
	default:
		return 0, false
	}
}

// airArgumentsFromContainer converts the container's reflected argument
// list into the AIR metadata shape the lowering pass consumes.
func airArgumentsFromContainer(args []container.Argument) []air.Argument {
	if len(args) == 0 {
		return nil
	}
	out := make([]air.Argument, len(args))
	for i, a := range args {
		out[i] = air.Argument{
			Name:            a.Name,
			Kind:            air.ResourceKind(a.Kind),
			ExternalIndex:   a.ExternalIndex,
			InternalIndex:   a.InternalIndex,
			TextureAccess:   air.TextureAccess(a.Access),
			EmbeddedSampler: airSamplerFromContainer(a.EmbeddedSampler),
		}
	}
	return out
}

func airSamplerFromContainer(lit *container.SamplerLiteral) *air.SamplerLiteral {
	if lit == nil {
		return nil
	}
	return &air.SamplerLiteral{
		MinFilter:       lit.MinFilter,
		MagFilter:       lit.MagFilter,
		MipFilter:       lit.MipFilter,
		AddressU:        lit.AddressU,
		AddressV:        lit.AddressV,
		AddressW:        lit.AddressW,
		CompareFunction: lit.CompareFunction,
		CompareEnabled:  lit.CompareEnabled,
	}
}

// bindingsFromArguments derives a function's ordered binding list and
// materializable embedded samplers from its reflected arguments, per
// the descriptor-set-layout builder's input contract.
func bindingsFromArguments(args []container.Argument) ([]types.Binding, []EmbeddedSampler) {
	if len(args) == 0 {
		return nil, nil
	}
	bindings := make([]types.Binding, 0, len(args))
	var samplers []EmbeddedSampler
	for _, a := range args {
		b := types.Binding{
			Type:                 bindingTypeFromArgumentKind(a.Kind),
			ExternalIndex:        a.ExternalIndex,
			InternalIndex:        a.InternalIndex,
			TextureAccessType:    textureAccessTypeFromContainer(a.Access),
			EmbeddedSamplerIndex: -1,
		}
		if a.EmbeddedSampler != nil {
			b.EmbeddedSamplerIndex = len(samplers)
			samplers = append(samplers, EmbeddedSampler{Descriptor: samplerDescriptorFromLiteral(a.EmbeddedSampler)})
		}
		bindings = append(bindings, b)
	}
	return bindings, samplers
}

func bindingTypeFromArgumentKind(k container.ArgumentKind) types.BindingType {
	switch k {
	case container.ArgumentBuffer:
		return types.BindingTypeBuffer
	case container.ArgumentVertexInput:
		return types.BindingTypeVertexInput
	case container.ArgumentTexture:
		return types.BindingTypeTexture
	case container.ArgumentSampler:
		return types.BindingTypeSampler
	default:
		return types.BindingTypeBuffer
	}
}

func textureAccessTypeFromContainer(a container.TextureAccess) types.TextureAccessType {
	switch a {
	case container.AccessRead:
		return types.TextureAccessRead
	case container.AccessWrite:
		return types.TextureAccessWrite
	case container.AccessReadWrite:
		return types.TextureAccessReadWrite
	default:
		return types.TextureAccessSample
	}
}

func samplerDescriptorFromLiteral(lit *container.SamplerLiteral) types.SamplerDescriptor {
	return types.SamplerDescriptor{
		MinFilter:       types.SamplerMinMagFilter(lit.MinFilter),
		MagFilter:       types.SamplerMinMagFilter(lit.MagFilter),
		MipFilter:       types.SamplerMipFilter(lit.MipFilter),
		AddressModeU:    types.SamplerAddressMode(lit.AddressU),
		AddressModeV:    types.SamplerAddressMode(lit.AddressV),
		AddressModeW:    types.SamplerAddressMode(lit.AddressW),
		CompareFunction: types.CompareFunction(lit.CompareFunction),
		CompareEnabled:  lit.CompareEnabled,
	}
}

package engine

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// ModuleWASI is the WASI preview1 module name.
const ModuleWASI = wasi_snapshot_preview1.ModuleName

// InstantiateWASI instantiates WASI preview1 into r.
func InstantiateWASI(ctx context.Context, r wazero.Runtime) (api.Module, error) {
	if mod := r.Module(ModuleWASI); mod != nil {
		return mod, nil
	}
	builder := r.NewHostModuleBuilder(ModuleWASI)
	wasi_snapshot_preview1.NewFunctionExporter().ExportFunctions(builder)
	return builder.Instantiate(ctx)
}

package transfer

import (
	"path/filepath"
	"strings"

	"github.com/docpipe/docpipe/internal/store"
)

// Google-native document types have no direct byte representation and
// must be exported as a concrete format before download.
var exportContentTypes = map[string]string{
	"application/vnd.google-apps.document":     "application/pdf",
	"application/vnd.google-apps.spreadsheet":  "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"application/vnd.google-apps.presentation": "application/pdf",
}

var exportExtensions = map[string]string{
	"application/pdf": ".pdf",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": ".xlsx",
}

// Resolution records how an object will land on disk: direct download
// (ExportType empty) or format export, plus the local filename with the
// extension the exported bytes will actually have.
type Resolution struct {
	Object     store.Object
	ExportType string
	FinalName  string
}

func resolveFormat(obj store.Object) Resolution {
	exportType, ok := exportContentTypes[obj.ContentType]
	if !ok {
		return Resolution{Object: obj, FinalName: obj.Name}
	}

	ext, ok := exportExtensions[exportType]
	if !ok {
		ext = ".bin"
	}
	base := strings.TrimSuffix(obj.Name, filepath.Ext(obj.Name))
	return Resolution{
		Object:     obj,
		ExportType: exportType,
		FinalName:  base + ext,
	}
}

package configfs

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hreinecke/nvme-discd-go/internal/logger"
)

// readAttr reads a configfs attribute file and trims the trailing
// newline the kernel always writes. A malformed or missing attribute
// file is logged and the attribute left empty (spec §4.B failure
// semantics) rather than treated as fatal.
func readAttr(dir, name string) string {
	path := filepath.Join(dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Debug("configfs: failed to read attribute", "path", path, "error", err)
		return ""
	}
	return strings.TrimRight(string(data), "\n")
}

// readAttrBool reads a boolean-as-int attribute file (e.g.
// attr_allow_any_host, whose kernel representation is "0"/"1").
func readAttrBool(dir, name string) bool {
	v := readAttr(dir, name)
	n, err := strconv.Atoi(v)
	if err != nil {
		logger.Debug("configfs: malformed boolean attribute", "path", filepath.Join(dir, name), "value", v)
		return false
	}
	return n != 0
}

const (
	attrPrefixPort   = "addr_"
	attrAllowAnyHost = "attr_allow_any_host"
)

// portAttrs are the addr_* files read on port creation, mirroring
// original_source/inotify.c's port_read_attr().
var portAttrs = []string{"trtype", "traddr", "trsvcid", "adrfam", "treq", "tsas"}

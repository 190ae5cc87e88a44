package runner

import (
	"fmt"
	"strings"
)

// MetadataEnv names the variable holding the path runner.py dumps the
// plugin metadata to
const MetadataEnv = "STORE_TEST_METADATA"

const runnerScript = `import json
import os

from nonebot import init, load_plugin, require, logger
from pydantic import BaseModel


class SetEncoder(json.JSONEncoder):
    def default(self, obj):
        if isinstance(obj, set):
            return list(obj)
        return json.JSONEncoder.default(self, obj)


init()
plugin = load_plugin("%s")

if not plugin:
    exit(1)
else:
    if plugin.metadata:
        metadata = {
            "name": plugin.metadata.name,
            "description": plugin.metadata.description,
            "usage": plugin.metadata.usage,
            "type": plugin.metadata.type,
            "homepage": plugin.metadata.homepage,
            "supported_adapters": plugin.metadata.supported_adapters,
        }
        with open(os.environ["` + MetadataEnv + `"], "w", encoding="utf8") as f:
            f.write(json.dumps(metadata, cls=SetEncoder))

        if plugin.metadata.config and not issubclass(plugin.metadata.config, BaseModel):
            logger.error("plugin config is not a subclass of pydantic BaseModel")
            exit(1)

%s
`

// renderRunnerScript returns runner.py for the module, requiring deps first
func renderRunnerScript(moduleName string, deps []string) string {
	requires := make([]string, 0, len(deps))
	for _, dep := range deps {
		requires = append(requires, fmt.Sprintf("require(%q)", dep))
	}
	return fmt.Sprintf(runnerScript, moduleName, strings.Join(requires, "\n"))
}

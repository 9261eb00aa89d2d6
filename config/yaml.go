package config

import (
	"reflect"
	"strings"

	"github.com/tessellated-io/wasmledger/log"
	"gopkg.in/yaml.v2"
)

// WriteYamlWithComments writes config as YAML, emitting each field's `comment` tag above it.
// Existing files are left untouched.
func WriteYamlWithComments(config interface{}, header string, filename string, logger *log.Logger) error {
	fileData, err := addCommentsToYaml(config, header)
	if err != nil {
		return err
	}

	return SafeWrite(filename, fileData, logger)
}

func addCommentsToYaml(config interface{}, header string) ([]byte, error) {
	data, err := yaml.Marshal(config)
	if err != nil {
		return nil, err
	}

	var result strings.Builder
	if header != "" {
		result.WriteString("# " + header + "\n")
	}

	// Handle both struct and pointer to struct
	v := reflect.ValueOf(config)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	yamlStr := string(data)
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)

		yamlKey := strings.Split(field.Tag.Get("yaml"), ",")[0]
		comment := field.Tag.Get("comment")
		if yamlKey == "" || yamlKey == "-" {
			continue
		}

		// Fields are marshalled in declaration order, so only search forward.
		lineStart := indexOfKey(yamlStr, yamlKey)
		if lineStart < 0 {
			continue
		}

		lineEnd := strings.Index(yamlStr[lineStart:], "\n")
		if lineEnd < 0 {
			lineEnd = len(yamlStr)
		} else {
			lineEnd += lineStart
		}

		result.WriteString(yamlStr[:lineStart])
		if comment != "" {
			result.WriteString("\n# " + comment + "\n")
		}
		result.WriteString(yamlStr[lineStart:lineEnd])
		yamlStr = yamlStr[lineEnd:]
	}

	result.WriteString(yamlStr)
	return []byte(result.String()), nil
}

// indexOfKey finds a top level key, so that "denom:" does not match inside "fee_denom:".
func indexOfKey(yamlStr, key string) int {
	if strings.HasPrefix(yamlStr, key+":") {
		return 0
	}
	idx := strings.Index(yamlStr, "\n"+key+":")
	if idx < 0 {
		return -1
	}
	return idx + 1
}

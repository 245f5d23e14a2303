package detect

import (
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"agentScope/internal/model"
)

// alertShape maps one symbolic signature name to its alert identity. Adding a
// watched signature is a row here, not a new branch.
type alertShape struct {
	id          string
	name        string
	description string
}

var alertShapes = map[string]alertShape{
	"createAgent": {
		id:          "AGENT-CREATE-1",
		name:        "Bot Registry Agent Created",
		description: "Agent created by %s",
	},
	"updateAgent": {
		id:          "AGENT-UPDATE-1",
		name:        "Bot Registry Agent Updated",
		description: "Agent updated by %s",
	},
	"Swap": {
		id:          "POOL-SWAP-1",
		name:        "Uniswap V3 Pool Swap",
		description: "Swap event detected in pool %s",
	},
	"exactInputSingle": {
		id:          "ROUTER-SWAP-1",
		name:        "Router Exact Input Swap",
		description: "Swap routed through %s",
	},
	"exactOutputSingle": {
		id:          "ROUTER-SWAP-2",
		name:        "Router Exact Output Swap",
		description: "Swap routed through %s",
	},
}

// Normalize maps a matched event into an alert record. The subject address is
// interpolated into the description in the case the caller supplied; every
// numeric argument is rendered as its base-10 decimal string.
func Normalize(name string, args map[string]interface{}, subject string) (model.Alert, error) {
	shape, ok := alertShapes[name]
	if !ok {
		return model.Alert{}, fmt.Errorf("no alert shape for %s", name)
	}

	return model.Alert{
		AlertID:     shape.id,
		Name:        shape.name,
		Description: fmt.Sprintf(shape.description, subject),
		Severity:    model.SeverityLow,
		Category:    model.CategoryInfo,
		Metadata:    flattenArgs(args),
	}, nil
}

// flattenArgs renders decoded arguments as string metadata, expanding tuple
// values into their named fields. Unnamed arguments are dropped.
func flattenArgs(args map[string]interface{}) map[string]string {
	out := make(map[string]string, len(args))
	for key, value := range args {
		if key == "" {
			continue
		}
		if fields, ok := tupleFields(value); ok {
			for fieldKey, fieldValue := range fields {
				out[fieldKey] = formatValue(fieldValue)
			}
			continue
		}
		out[key] = formatValue(value)
	}
	return out
}

// tupleFields expands an ABI tuple (decoded as an anonymous struct) into its
// fields, keyed by the lower-camel field name.
func tupleFields(value interface{}) (map[string]interface{}, bool) {
	switch value.(type) {
	case common.Address, common.Hash, *big.Int, big.Int:
		return nil, false
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if !rv.IsValid() || rv.Kind() != reflect.Struct {
		return nil, false
	}

	fields := make(map[string]interface{}, rv.NumField())
	for i := 0; i < rv.NumField(); i++ {
		field := rv.Type().Field(i)
		if !field.IsExported() {
			continue
		}
		fields[lowerFirst(field.Name)] = rv.Field(i).Interface()
	}
	return fields, true
}

func formatValue(value interface{}) string {
	switch v := value.(type) {
	case *big.Int:
		return v.String()
	case big.Int:
		return v.String()
	case common.Address:
		return v.Hex()
	case common.Hash:
		return v.Hex()
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case []byte:
		return hexutil.Encode(v)
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Slice, reflect.Array:
		parts := make([]string, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			parts = append(parts, formatValue(rv.Index(i).Interface()))
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprintf("%v", value)
	}
}

func lowerFirst(name string) string {
	if name == "" {
		return name
	}
	return strings.ToLower(name[:1]) + name[1:]
}

package litclient

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/ruteri/lit-quorum-client/common"
	"github.com/ruteri/lit-quorum-client/interfaces"
)

// Condition types accepted in unified access control conditions.
const (
	ConditionTypeEvmBasic    = "evmBasic"
	ConditionTypeEvmContract = "evmContract"
)

type operatorCondition struct {
	Operator string `json:"operator"`
}

type returnValueTest struct {
	Comparator string          `json:"comparator"`
	Value      json.RawMessage `json:"value"`
}

type evmBasicCondition struct {
	ContractAddress      string          `json:"contractAddress"`
	Chain                string          `json:"chain"`
	StandardContractType string          `json:"standardContractType"`
	Method               string          `json:"method"`
	Parameters           []string        `json:"parameters"`
	ReturnValueTest      returnValueTest `json:"returnValueTest"`
}

type abiParam struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type functionABI struct {
	Name            string     `json:"name"`
	Inputs          []abiParam `json:"inputs"`
	Outputs         []abiParam `json:"outputs"`
	Constant        bool       `json:"constant"`
	StateMutability string     `json:"stateMutability"`
}

type contractReturnValueTest struct {
	Key        *string         `json:"key,omitempty"`
	Comparator string          `json:"comparator"`
	Value      json.RawMessage `json:"value"`
}

type evmContractCondition struct {
	ContractAddress string                  `json:"contractAddress"`
	FunctionName    string                  `json:"functionName"`
	FunctionParams  []json.RawMessage       `json:"functionParams"`
	FunctionABI     functionABI             `json:"functionAbi"`
	Chain           string                  `json:"chain"`
	ReturnValueTest contractReturnValueTest `json:"returnValueTest"`
}

var (
	evmBasicFields    = []string{"contractAddress", "chain", "standardContractType", "method", "parameters", "returnValueTest"}
	evmContractFields = []string{"contractAddress", "functionName", "functionParams", "functionAbi", "chain", "returnValueTest"}
	returnTestFields  = []string{"comparator", "value"}
	functionABIFields = []string{"name", "inputs", "outputs", "stateMutability"}
)

func requireFields(obj map[string]json.RawMessage, fields []string) error {
	for _, f := range fields {
		v, ok := obj[f]
		if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) && f != "value" {
			return interfaces.AccessControlError("missing field `%s`", f)
		}
	}
	return nil
}

func requireNested(obj map[string]json.RawMessage, key string, fields []string) error {
	var nested map[string]json.RawMessage
	if err := json.Unmarshal(obj[key], &nested); err != nil {
		return interfaces.AccessControlError("invalid %s: %w", key, err)
	}
	return requireFields(nested, fields)
}

func canonicalizeItem(raw json.RawMessage) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, interfaces.AccessControlError("%w", err)
		}
		out := make([]any, len(items))
		for i, item := range items {
			c, err := canonicalizeItem(item)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, interfaces.AccessControlError("invalid condition: %w", err)
	}

	if op, ok := obj["operator"]; ok {
		var s string
		if err := json.Unmarshal(op, &s); err != nil {
			return nil, interfaces.AccessControlError("operator must be a string")
		}
		return operatorCondition{Operator: s}, nil
	}

	conditionType := ConditionTypeEvmBasic
	if _, ok := obj["functionName"]; ok {
		conditionType = ConditionTypeEvmContract
	} else if _, ok := obj["functionAbi"]; ok {
		conditionType = ConditionTypeEvmContract
	}
	if ct, ok := obj["conditionType"]; ok {
		var s string
		if json.Unmarshal(ct, &s) == nil {
			conditionType = s
		}
	}

	switch conditionType {
	case ConditionTypeEvmBasic:
		if err := requireFields(obj, evmBasicFields); err != nil {
			return nil, err
		}
		if err := requireNested(obj, "returnValueTest", returnTestFields); err != nil {
			return nil, err
		}
		var cond evmBasicCondition
		if err := json.Unmarshal(trimmed, &cond); err != nil {
			return nil, interfaces.AccessControlError("%w", err)
		}
		return cond, nil

	case ConditionTypeEvmContract:
		if err := requireFields(obj, evmContractFields); err != nil {
			return nil, err
		}
		if err := requireNested(obj, "returnValueTest", returnTestFields); err != nil {
			return nil, err
		}
		if err := requireNested(obj, "functionAbi", functionABIFields); err != nil {
			return nil, err
		}
		var cond evmContractCondition
		if err := json.Unmarshal(trimmed, &cond); err != nil {
			return nil, interfaces.AccessControlError("%w", err)
		}
		return cond, nil
	}

	return nil, interfaces.AccessControlError("unsupported unified conditionType: %s", conditionType)
}

// CanonicalizeUnifiedAccessControlConditions rewrites unified access control
// conditions into the deterministic form nodes hash: known fields only, in a fixed
// order, with the conditionType tag dropped.
func CanonicalizeUnifiedAccessControlConditions(unified json.RawMessage) (json.RawMessage, error) {
	var items []json.RawMessage
	trimmed := bytes.TrimSpace(unified)
	if len(trimmed) == 0 || trimmed[0] != '[' || json.Unmarshal(trimmed, &items) != nil {
		return nil, interfaces.AccessControlError("unifiedAccessControlConditions must be an array")
	}

	canonical := make([]any, len(items))
	for i, item := range items {
		c, err := canonicalizeItem(item)
		if err != nil {
			return nil, err
		}
		canonical[i] = c
	}

	out, err := common.MarshalJSON(canonical)
	if err != nil {
		return nil, interfaces.AccessControlError("%w", err)
	}
	return out, nil
}

// HashUnifiedAccessControlConditions returns the SHA-256 of the canonical conditions.
func HashUnifiedAccessControlConditions(unified json.RawMessage) ([]byte, error) {
	canonical, err := CanonicalizeUnifiedAccessControlConditions(unified)
	if err != nil {
		return nil, err
	}
	if bytes.Equal(canonical, []byte("[]")) {
		return nil, interfaces.AccessControlError("no conditions provided")
	}
	sum := sha256.Sum256(canonical)
	return sum[:], nil
}

// AccessControlIdentity is the BLS identity a ciphertext is bound to.
func AccessControlIdentity(conditionsHashHex, dataHashHex string) string {
	return fmt.Sprintf("lit-accesscontrolcondition://%s/%s", conditionsHashHex, dataHashHex)
}

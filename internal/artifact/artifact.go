// Package artifact loads compiled contract artifacts produced by Foundry or Hardhat.
package artifact

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"

	mytoken "github.com/manzur349/my-token"
)

// linkPlaceholder marks an unlinked library reference in solc output.
const linkPlaceholder = "__$"

// Artifact is a compiled Solidity contract with ABI and creation bytecode.
type Artifact struct {
	Name     string
	ABI      abi.ABI
	Bytecode []byte
}

// rawArtifact mirrors the artifact JSON on disk.
type rawArtifact struct {
	ABI          json.RawMessage `json:"abi"`
	Bytecode     Bytecode        `json:"bytecode"`
	ContractName string          `json:"contractName,omitempty"`
}

// Bytecode contains the contract bytecode.
// It handles both formats:
// - Simple string: "0x608060..." (Hardhat)
// - Object with "object" field: {"object": "0x608060..."} (Foundry)
type Bytecode struct {
	hex string
}

// UnmarshalJSON handles both string and object bytecode formats.
func (b *Bytecode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		b.hex = s
		return nil
	}

	var obj struct {
		Object string `json:"object"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		b.hex = obj.Object
		return nil
	}

	return fmt.Errorf("bytecode must be a string or object with 'object' field")
}

// String returns the bytecode hex string.
func (b Bytecode) String() string {
	return b.hex
}

// Load reads an artifact file. When the file does not name the contract, the
// name is taken from the file name (out/MyToken.sol/MyToken.json -> MyToken).
func Load(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, invalid(fmt.Errorf("%w: read %s: %v", mytoken.ErrInvalidArtifact, path, err))
	}

	art, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if art.Name == "" {
		art.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return art, nil
}

// Parse decodes artifact JSON.
func Parse(data []byte) (*Artifact, error) {
	var raw rawArtifact
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, invalid(fmt.Errorf("%w: parse json: %v", mytoken.ErrInvalidArtifact, err))
	}
	if len(raw.ABI) == 0 {
		return nil, invalid(fmt.Errorf("%w: missing abi", mytoken.ErrInvalidArtifact))
	}

	parsedABI, err := abi.JSON(bytes.NewReader(raw.ABI))
	if err != nil {
		return nil, invalid(fmt.Errorf("%w: parse abi: %v", mytoken.ErrInvalidArtifact, err))
	}

	code, err := decodeBytecode(raw.Bytecode.hex)
	if err != nil {
		return nil, invalid(err)
	}

	return &Artifact{
		Name:     raw.ContractName,
		ABI:      parsedABI,
		Bytecode: code,
	}, nil
}

func decodeBytecode(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, linkPlaceholder) {
		return nil, fmt.Errorf("%w: bytecode has unlinked library references", mytoken.ErrInvalidArtifact)
	}
	if !strings.HasPrefix(s, "0x") {
		s = "0x" + s
	}
	if s == "0x" {
		return nil, fmt.Errorf("%w: empty bytecode", mytoken.ErrInvalidArtifact)
	}

	code, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: decode bytecode: %v", mytoken.ErrInvalidArtifact, err)
	}
	return code, nil
}

// EncodeConstructorArgs packs constructor arguments with the contract's ABI.
// Returns the encoded args (without bytecode prefix) ready to append to bytecode.
func (a *Artifact) EncodeConstructorArgs(args ...any) ([]byte, error) {
	inputs := a.ABI.Constructor.Inputs
	if len(inputs) != len(args) {
		return nil, invalid(fmt.Errorf("%w: constructor takes %d arguments, got %d",
			mytoken.ErrInvalidArtifact, len(inputs), len(args)))
	}
	if len(args) == 0 {
		return nil, nil
	}

	packed, err := inputs.Pack(args...)
	if err != nil {
		return nil, invalid(fmt.Errorf("%w: pack constructor args: %v", mytoken.ErrInvalidArtifact, err))
	}
	return packed, nil
}

// DeployData returns the creation bytecode followed by the encoded constructor arguments.
func (a *Artifact) DeployData(args ...any) ([]byte, error) {
	packed, err := a.EncodeConstructorArgs(args...)
	if err != nil {
		return nil, err
	}

	data := make([]byte, 0, len(a.Bytecode)+len(packed))
	data = append(data, a.Bytecode...)
	return append(data, packed...), nil
}

// FormatArgs renders constructor arguments the way the run record stores them.
func FormatArgs(args ...any) []string {
	out := make([]string, len(args))
	for i, arg := range args {
		switch v := arg.(type) {
		case interface{ Hex() string }:
			out[i] = v.Hex()
		default:
			out[i] = fmt.Sprint(v)
		}
	}
	return out
}

func invalid(err error) error {
	return mytoken.NewConfigError("artifact", err)
}

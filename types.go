// Package mytoken deploys the MyToken ERC-20 contract with a key taken from the
// PRIVATE_KEY environment variable.
package mytoken

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// Defaults
const (
	DefaultContractName = "MyToken"
	DefaultArtifactPath = "out/MyToken.sol/MyToken.json"
	DefaultRPCURL       = "http://localhost:8545"
	PrivateKeyEnv       = "PRIVATE_KEY"
)

// TxKind is the kind of a broadcast transaction.
type TxKind string

// Transaction kinds, named after Foundry's broadcast log.
const (
	TxKindCreate TxKind = "CREATE"
	TxKindCall   TxKind = "CALL"
)

// TxStatus is the on-chain outcome of a broadcast transaction.
type TxStatus string

const (
	TxStatusPending  TxStatus = "pending"
	TxStatusSuccess  TxStatus = "success"
	TxStatusReverted TxStatus = "reverted"
)

// TxRecord describes one transaction sent during a broadcast session.
type TxRecord struct {
	Hash            common.Hash     `json:"hash"`
	Kind            TxKind          `json:"kind"`
	ContractName    string          `json:"contractName,omitempty"`
	From            common.Address  `json:"from"`
	To              *common.Address `json:"to,omitempty"`
	ContractAddress *common.Address `json:"contractAddress,omitempty"`
	Arguments       []string        `json:"arguments,omitempty"`
	Value           *big.Int        `json:"value,omitempty"`
	Nonce           uint64          `json:"nonce"`
	GasLimit        uint64          `json:"gasLimit"`
	Status          TxStatus        `json:"status"`
	BlockNumber     uint64          `json:"blockNumber,omitempty"`
	GasUsed         uint64          `json:"gasUsed,omitempty"`
}

// Deployment is the result of a successful contract creation.
type Deployment struct {
	RunID        string         `json:"runId" yaml:"run_id"`
	ContractName string         `json:"contractName" yaml:"contract_name"`
	Address      common.Address `json:"address" yaml:"address"`
	TxHash       common.Hash    `json:"txHash" yaml:"tx_hash"`
	Deployer     common.Address `json:"deployer" yaml:"deployer"`
	Arguments    []string       `json:"arguments" yaml:"arguments"`
	ChainID      *big.Int       `json:"chainId" yaml:"chain_id"`
	BlockNumber  uint64         `json:"blockNumber" yaml:"block_number"`
	GasUsed      uint64         `json:"gasUsed" yaml:"gas_used"`
	Duration     Duration       `json:"duration" yaml:"duration"`
}

// Duration is a time.Duration encoded as its string form, such as "1.5s", in
// both JSON and YAML.
type Duration time.Duration

func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	return d.parse(s)
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	return d.parse(s)
}

func (d *Duration) parse(s string) error {
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

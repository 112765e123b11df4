package mytoken

import (
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestConstants(t *testing.T) {
	assert.Equal(t, "MyToken", DefaultContractName)
	assert.Equal(t, "out/MyToken.sol/MyToken.json", DefaultArtifactPath)
	assert.Equal(t, "PRIVATE_KEY", PrivateKeyEnv)
	assert.Equal(t, TxKind("CREATE"), TxKindCreate)
	assert.Equal(t, TxKind("CALL"), TxKindCall)
}

func TestTxRecord_JSON(t *testing.T) {
	contract := common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	rec := TxRecord{
		Hash:            common.HexToHash("0xabc"),
		Kind:            TxKindCreate,
		ContractName:    "MyToken",
		From:            common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"),
		ContractAddress: &contract,
		Arguments:       []string{"0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"},
		Status:          TxStatusSuccess,
		GasLimit:        600000,
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))

	assert.Equal(t, "CREATE", fields["kind"])
	assert.Equal(t, "success", fields["status"])
	assert.NotContains(t, fields, "to")
	assert.Contains(t, fields, "contractAddress")
	assert.NotContains(t, fields, "blockNumber")
}

func TestDeployment_JSON(t *testing.T) {
	dep := Deployment{
		RunID:        "run-1",
		ContractName: "MyToken",
		ChainID:      big.NewInt(31337),
		Duration:     Duration(1500 * time.Millisecond),
	}

	data, err := json.Marshal(dep)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"chainId":31337`)
	assert.Contains(t, string(data), `"runId":"run-1"`)
}

func TestDuration_SameFormatInJSONAndYAML(t *testing.T) {
	dep := Deployment{Duration: Duration(1500 * time.Millisecond)}

	js, err := json.Marshal(dep)
	require.NoError(t, err)
	assert.Contains(t, string(js), `"duration":"1.5s"`)

	ym, err := yaml.Marshal(dep)
	require.NoError(t, err)
	assert.Contains(t, string(ym), "duration: 1.5s")

	var fromJSON, fromYAML Deployment
	require.NoError(t, json.Unmarshal(js, &fromJSON))
	require.NoError(t, yaml.Unmarshal(ym, &fromYAML))
	assert.Equal(t, dep.Duration, fromJSON.Duration)
	assert.Equal(t, dep.Duration, fromYAML.Duration)
}

func TestDuration_RejectsInvalid(t *testing.T) {
	var d Duration
	assert.Error(t, json.Unmarshal([]byte(`1500000000`), &d))
	assert.Error(t, json.Unmarshal([]byte(`"soon"`), &d))
	assert.Error(t, yaml.Unmarshal([]byte(`soon`), &d))
}

package pancake

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// routerABIJSON is the subset of the PancakeSwap V2 router used here.
const routerABIJSON = `[
  {
    "name": "getAmountsOut",
    "type": "function",
    "stateMutability": "view",
    "inputs": [
      {"name": "amountIn", "type": "uint256"},
      {"name": "path", "type": "address[]"}
    ],
    "outputs": [
      {"name": "amounts", "type": "uint256[]"}
    ]
  }
]`

const methodGetAmountsOut = "getAmountsOut"

var routerABI = mustParseABI(routerABIJSON)

func mustParseABI(js string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(js))
	if err != nil {
		panic(fmt.Sprintf("pancake: parse router abi: %v", err))
	}
	return parsed
}

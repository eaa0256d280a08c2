package evm

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// ABI fragments for the two deployed contracts, limited to the methods
// and events this module exercises.

const htlcABIJSON = `[
  {"type":"function","name":"newContract","stateMutability":"nonpayable",
   "inputs":[
     {"name":"_receiver","type":"address"},
     {"name":"_hashlock","type":"bytes32"},
     {"name":"_timelock","type":"uint256"},
     {"name":"_tokenContract","type":"address"},
     {"name":"_amount","type":"uint256"}],
   "outputs":[{"name":"contractId","type":"bytes32"}]},
  {"type":"function","name":"getContract","stateMutability":"view",
   "inputs":[{"name":"_contractId","type":"bytes32"}],
   "outputs":[
     {"name":"sender","type":"address"},
     {"name":"receiver","type":"address"},
     {"name":"tokenContract","type":"address"},
     {"name":"amount","type":"uint256"},
     {"name":"hashlock","type":"bytes32"},
     {"name":"timelock","type":"uint256"},
     {"name":"withdrawn","type":"bool"},
     {"name":"refunded","type":"bool"},
     {"name":"preimage","type":"bytes32"},
     {"name":"secretLength","type":"uint256"}]},
  {"type":"function","name":"haveContract","stateMutability":"view",
   "inputs":[{"name":"_contractId","type":"bytes32"}],
   "outputs":[{"name":"exists","type":"bool"}]},
  {"type":"function","name":"withdraw","stateMutability":"nonpayable",
   "inputs":[
     {"name":"_contractId","type":"bytes32"},
     {"name":"_preimage","type":"bytes32"}],
   "outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"refund","stateMutability":"nonpayable",
   "inputs":[{"name":"_contractId","type":"bytes32"}],
   "outputs":[{"name":"","type":"bool"}]},
  {"type":"event","name":"HTLCERC20New","anonymous":false,
   "inputs":[
     {"name":"contractId","type":"bytes32","indexed":true},
     {"name":"sender","type":"address","indexed":true},
     {"name":"receiver","type":"address","indexed":true},
     {"name":"tokenContract","type":"address","indexed":false},
     {"name":"amount","type":"uint256","indexed":false},
     {"name":"hashlock","type":"bytes32","indexed":false},
     {"name":"timelock","type":"uint256","indexed":false}]},
  {"type":"event","name":"HTLCERC20Withdraw","anonymous":false,
   "inputs":[{"name":"contractId","type":"bytes32","indexed":true}]}
]`

const tokenABIJSON = `[
  {"type":"function","name":"balanceOf","stateMutability":"view",
   "inputs":[{"name":"account","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"allowance","stateMutability":"view",
   "inputs":[
     {"name":"owner","type":"address"},
     {"name":"spender","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"increaseAllowance","stateMutability":"nonpayable",
   "inputs":[
     {"name":"spender","type":"address"},
     {"name":"addedValue","type":"uint256"}],
   "outputs":[{"name":"","type":"bool"}]}
]`

var (
	htlcABI  abi.ABI
	tokenABI abi.ABI
)

func init() {
	var err error
	htlcABI, err = abi.JSON(strings.NewReader(htlcABIJSON))
	if err != nil {
		panic(err)
	}
	tokenABI, err = abi.JSON(strings.NewReader(tokenABIJSON))
	if err != nil {
		panic(err)
	}
}

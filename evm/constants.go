package evm

const (
	// EIP-3009 function names
	FunctionTransferWithAuthorization = "transferWithAuthorization"
	FunctionBalanceOf                 = "balanceOf"

	// Receipt status values
	TxStatusSuccess = 1
	TxStatusFailed  = 0

	// EIP-712 domain for EIP-3009 stablecoins
	TokenName    = "USD Coin"
	TokenVersion = "2"
)

// Verification failure reasons. These are part of the facilitator's wire
// contract; route handlers serialize them verbatim into 402 bodies.
const (
	ReasonFieldsInvalid       = "Authorization fields invalid"
	ReasonInvalidSignature    = "Invalid signature"
	ReasonSignerMismatch      = "Signer does not match 'from' address"
	ReasonInsufficientBalance = "Insufficient balance"
	ReasonNotYetValid         = "Authorization not yet valid"
	ReasonExpired             = "Authorization expired"
	ReasonVerifyFailed        = "Verification failed"
)

// Settlement failure reasons.
const (
	ErrWalletNotConfigured = "Wallet client not configured"
	ErrTransactionReverted = "Transaction reverted"
)

var (
	// TransferWithAuthorizationABI is the EIP-3009 transfer entrypoint with
	// split v,r,s signature components (EOA signatures).
	TransferWithAuthorizationABI = []byte(`[
		{
			"inputs": [
				{"name": "from", "type": "address"},
				{"name": "to", "type": "address"},
				{"name": "value", "type": "uint256"},
				{"name": "validAfter", "type": "uint256"},
				{"name": "validBefore", "type": "uint256"},
				{"name": "nonce", "type": "bytes32"},
				{"name": "v", "type": "uint8"},
				{"name": "r", "type": "bytes32"},
				{"name": "s", "type": "bytes32"}
			],
			"name": "transferWithAuthorization",
			"outputs": [],
			"stateMutability": "nonpayable",
			"type": "function"
		}
	]`)

	// ERC20BalanceOfABI is used for the verifier's balance check.
	ERC20BalanceOfABI = []byte(`[
		{
			"inputs": [
				{"name": "account", "type": "address"}
			],
			"name": "balanceOf",
			"outputs": [{"name": "", "type": "uint256"}],
			"stateMutability": "view",
			"type": "function"
		}
	]`)
)

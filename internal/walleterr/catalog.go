package walleterr

type catalogEntry struct {
	message         string
	troubleshooting []string
	recovery        []RecoveryAction
	severity        Severity
	retryable       bool
}

var retryPrimary = RecoveryAction{
	Label:       "Try Again",
	Description: "Retry the operation",
	Action:      ActionRetry,
	Priority:    PriorityPrimary,
}

var reconnectPrimary = RecoveryAction{
	Label:       "Reconnect",
	Description: "Connect your wallet again",
	Action:      ActionReconnect,
	Priority:    PriorityPrimary,
}

var checkNetworkSecondary = RecoveryAction{
	Label:       "Check Network",
	Description: "Verify your internet connection",
	Action:      ActionCheckNetwork,
	Priority:    PrioritySecondary,
}

var catalog = map[Code]catalogEntry{
	CodeUserDeclined: {
		message: "You declined the wallet connection",
		troubleshooting: []string{
			"The connection request was cancelled or rejected in your wallet app",
			"You can try connecting again when ready",
		},
		recovery: []RecoveryAction{
			retryPrimary,
			{Label: "Cancel", Description: "Stay disconnected for now", Action: ActionContactSupport, Priority: PrioritySecondary},
		},
		severity:  SeverityLow,
		retryable: true,
	},
	CodeWalletNotFound: {
		message: "No compatible wallet app found",
		troubleshooting: []string{
			"A ledger wallet app is required to play",
			"Make sure at least one compatible wallet is installed",
			"If you just installed a wallet, restart the app",
		},
		recovery: []RecoveryAction{
			{Label: "Install Wallet", Description: "Download a compatible wallet", Action: ActionInstallWallet, Priority: PriorityPrimary},
			{Label: "Restart App", Description: "Close and reopen the app", Action: ActionRestartApp, Priority: PrioritySecondary},
		},
		severity:  SeverityCritical,
		retryable: false,
	},
	CodeConnectionTimeout: {
		message: "Wallet connection timed out",
		troubleshooting: []string{
			"The wallet app took too long to respond",
			"Make sure the wallet app is running and responsive",
			"Check your internet connection",
		},
		recovery:  []RecoveryAction{retryPrimary, checkNetworkSecondary},
		severity:  SeverityMedium,
		retryable: true,
	},
	CodeNetworkError: {
		message: "Network connection failed",
		troubleshooting: []string{
			"Unable to reach the ledger network",
			"Check your internet connection",
			"The network might be experiencing issues",
		},
		recovery: []RecoveryAction{
			{Label: "Check Network", Description: "Verify your internet connection", Action: ActionCheckNetwork, Priority: PriorityPrimary},
			{Label: "Try Again", Description: "Retry after checking your connection", Action: ActionRetry, Priority: PrioritySecondary},
		},
		severity:  SeverityHigh,
		retryable: true,
	},
	CodeAuthorizationFailed: {
		message: "Wallet authorization failed",
		troubleshooting: []string{
			"The wallet app failed to authorize this client",
			"Make sure your wallet app is up to date",
			"Try disconnecting and reconnecting",
		},
		recovery: []RecoveryAction{
			reconnectPrimary,
			{Label: "Update Wallet", Description: "Check for wallet app updates", Action: ActionUpdateWallet, Priority: PrioritySecondary},
		},
		severity:  SeverityHigh,
		retryable: true,
	},
	CodeReconnectionFailed: {
		message: "Automatic reconnection failed",
		troubleshooting: []string{
			"The wallet could not be reached after repeated attempts",
			"Your session data is intact; reconnect manually to continue",
		},
		recovery:  []RecoveryAction{reconnectPrimary, checkNetworkSecondary},
		severity:  SeverityMedium,
		retryable: true,
	},
	CodeSessionExpired: {
		message: "Your wallet session has expired",
		troubleshooting: []string{
			"Wallet sessions expire after 1 hour for security",
			"Your funds and game progress are safe",
		},
		recovery:  []RecoveryAction{reconnectPrimary},
		severity:  SeverityMedium,
		retryable: true,
	},
	CodeSessionInvalid: {
		message: "Wallet session is invalid",
		troubleshooting: []string{
			"Session data is missing or corrupted",
			"Reconnecting creates a fresh session",
		},
		recovery:  []RecoveryAction{reconnectPrimary},
		severity:  SeverityMedium,
		retryable: true,
	},
	CodeReauthorizationFailed: {
		message: "Failed to refresh wallet session",
		troubleshooting: []string{
			"The stored credential was not accepted by the wallet",
			"Reconnecting establishes a new session",
		},
		recovery:  []RecoveryAction{reconnectPrimary},
		severity:  SeverityMedium,
		retryable: true,
	},
	CodeGameSessionExpired: {
		message: "Game session has expired",
		troubleshooting: []string{
			"Game sessions expire after 30 minutes",
			"Pre-authorize a new session to keep playing",
		},
		recovery: []RecoveryAction{
			{Label: "Authorize Again", Description: "Pre-authorize a new game session", Action: ActionRetry, Priority: PriorityPrimary},
		},
		severity:  SeverityMedium,
		retryable: true,
	},
	CodeGameSessionInvalid: {
		message: "No valid game session",
		troubleshooting: []string{
			"There is no active game session for this game",
			"Pre-authorize the game before taking actions",
		},
		recovery: []RecoveryAction{
			{Label: "Authorize", Description: "Pre-authorize a game session", Action: ActionRetry, Priority: PriorityPrimary},
		},
		severity:  SeverityMedium,
		retryable: false,
	},
	CodeMaxActionsReached: {
		message: "Pre-authorized action limit reached",
		troubleshooting: []string{
			"All pre-approved actions for this session have been used",
			"Pre-authorize a new session to continue",
		},
		recovery: []RecoveryAction{
			{Label: "Authorize More", Description: "Pre-authorize additional actions", Action: ActionRetry, Priority: PriorityPrimary},
		},
		severity:  SeverityLow,
		retryable: false,
	},
	CodeTransactionRejected: {
		message: "Transaction was rejected",
		troubleshooting: []string{
			"You declined the transaction in your wallet app",
			"No funds were transferred",
		},
		recovery:  []RecoveryAction{retryPrimary},
		severity:  SeverityLow,
		retryable: true,
	},
	CodeTransactionTimeout: {
		message: "Transaction timed out",
		troubleshooting: []string{
			"The transaction took too long to confirm",
			"This can happen during network congestion",
			"Check your wallet for the transaction status before retrying",
		},
		recovery:  []RecoveryAction{retryPrimary, checkNetworkSecondary},
		severity:  SeverityMedium,
		retryable: true,
	},
	CodeInsufficientFunds: {
		message: "Insufficient funds",
		troubleshooting: []string{
			"Your wallet balance does not cover this transaction",
			"Remember to leave some balance for network fees",
		},
		recovery: []RecoveryAction{
			{Label: "Add Funds", Description: "Top up your wallet balance", Action: ActionAddFunds, Priority: PriorityPrimary},
		},
		severity:  SeverityHigh,
		retryable: false,
	},
	CodeTransactionFailed: {
		message: "Transaction failed",
		troubleshooting: []string{
			"The transaction was submitted but did not succeed",
			"The ledger may have rejected it; check the signature status",
		},
		recovery:  []RecoveryAction{retryPrimary, checkNetworkSecondary},
		severity:  SeverityHigh,
		retryable: true,
	},
	CodeSigningFailed: {
		message: "Failed to sign the transaction",
		troubleshooting: []string{
			"The wallet app could not sign the transaction",
			"Try reconnecting your wallet",
		},
		recovery:  []RecoveryAction{reconnectPrimary, retryPrimary},
		severity:  SeverityHigh,
		retryable: true,
	},
	CodeDelegationTimeout: {
		message: "Delegation did not propagate in time",
		troubleshooting: []string{
			"The delegation transaction was submitted but ownership did not transfer within the expected window",
			"The account may still become delegated shortly",
		},
		recovery:  []RecoveryAction{retryPrimary},
		severity:  SeverityMedium,
		retryable: true,
	},
	CodeNotDelegated: {
		message: "Game is not delegated to the rollup",
		troubleshooting: []string{
			"Gasless actions require the game to be delegated first",
			"Delegate the game and try again",
		},
		recovery: []RecoveryAction{
			{Label: "Delegate", Description: "Delegate the game to the rollup", Action: ActionRetry, Priority: PriorityPrimary},
		},
		severity:  SeverityMedium,
		retryable: false,
	},
	CodeRPCError: {
		message: "Ledger RPC request failed",
		troubleshooting: []string{
			"The RPC endpoint returned an error",
			"The endpoint might be briefly unavailable",
		},
		recovery:  []RecoveryAction{retryPrimary, checkNetworkSecondary},
		severity:  SeverityMedium,
		retryable: true,
	},
	CodeTimeout: {
		message: "Operation timed out",
		troubleshooting: []string{
			"The operation took too long to complete",
			"Check your connection and retry",
		},
		recovery:  []RecoveryAction{retryPrimary, checkNetworkSecondary},
		severity:  SeverityMedium,
		retryable: true,
	},
	CodeInsufficientBalance: {
		message: "Insufficient token balance",
		troubleshooting: []string{
			"The token account balance does not cover this operation",
		},
		recovery: []RecoveryAction{
			{Label: "Add Funds", Description: "Top up the token balance", Action: ActionAddFunds, Priority: PriorityPrimary},
		},
		severity:  SeverityHigh,
		retryable: false,
	},
	CodeInvalidAccount: {
		message: "Invalid token account",
		troubleshooting: []string{
			"The referenced account does not exist or has the wrong type",
			"Verify the mint and owner addresses",
		},
		recovery: []RecoveryAction{
			{Label: "Contact Support", Description: "Report the account details", Action: ActionContactSupport, Priority: PriorityPrimary},
		},
		severity:  SeverityHigh,
		retryable: false,
	},
	CodeWalletIncompatible: {
		message: "Wallet app is not compatible",
		troubleshooting: []string{
			"The installed wallet does not support the required protocol",
			"Install a compatible wallet to continue",
		},
		recovery: []RecoveryAction{
			{Label: "Install Wallet", Description: "Download a compatible wallet", Action: ActionInstallWallet, Priority: PriorityPrimary},
		},
		severity:  SeverityCritical,
		retryable: false,
	},
	CodeWalletOutdated: {
		message: "Wallet app is outdated",
		troubleshooting: []string{
			"The installed wallet version is too old",
			"Update the wallet app and retry",
		},
		recovery: []RecoveryAction{
			{Label: "Update Wallet", Description: "Check for wallet app updates", Action: ActionUpdateWallet, Priority: PriorityPrimary},
		},
		severity:  SeverityHigh,
		retryable: false,
	},
	CodeAdapterNotSupported: {
		message: "Wallet adapter protocol not supported on this device",
		troubleshooting: []string{
			"This device cannot run the wallet adapter protocol",
			"Use a supported device or wallet",
		},
		recovery: []RecoveryAction{
			{Label: "Contact Support", Description: "Ask about supported devices", Action: ActionContactSupport, Priority: PriorityPrimary},
		},
		severity:  SeverityCritical,
		retryable: false,
	},
	CodeUnknown: {
		message: "An unexpected error occurred",
		troubleshooting: []string{
			"Something went wrong that we did not anticipate",
			"Retrying often resolves transient problems",
		},
		recovery: []RecoveryAction{
			retryPrimary,
			{Label: "Contact Support", Description: "Report the problem if it persists", Action: ActionContactSupport, Priority: PrioritySecondary},
		},
		severity:  SeverityMedium,
		retryable: true,
	},
	CodeInternal: {
		message: "Internal client error",
		troubleshooting: []string{
			"The client hit an unexpected internal state",
			"Restarting the app usually clears it",
		},
		recovery: []RecoveryAction{
			{Label: "Restart App", Description: "Close and reopen the app", Action: ActionRestartApp, Priority: PriorityPrimary},
		},
		severity:  SeverityHigh,
		retryable: false,
	},
}

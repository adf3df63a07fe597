package txn

const (
	operationCreate  = "create"
	operationReverse = "reverse"

	operationStatusOK    = "ok"
	operationStatusError = "error"

	referencePrefix         = "TXN-"
	authorizationPrefix     = "AUTH-"
	referenceRandomLen      = 6
	authorizationRandomLen  = 8
	maxReferenceAttempts    = 5
	referenceTimestampForm  = "20060102150405"
	referenceRandomCharset  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	defaultListLimit        = 50
	maxListLimit            = 200
	reasonInsufficient      = "Insufficient credit balance. Available: %d cents, Required: %d cents"
	reasonDailyLimit        = "Daily limit exceeded. Limit: %d cents, Current: %d cents, Attempted: %d cents"
	reasonBalanceUpdateFail = "Failed to update card balance: %v"
)

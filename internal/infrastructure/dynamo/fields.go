package dynamo

// DynamoDB attribute names used in update and condition expressions.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldRead           = "read"
	fieldEmailConfirmed = "email_confirmed"
	fieldPhoneConfirmed = "phone_confirmed"
	fieldPasswordHash   = "password_hash"
	fieldUpdatedAt      = "updated_at"
	fieldDigest         = "digest"
	fieldExpiresAtMs    = "expires_at_ms"
)

package billing

// Customer is the payer behind a charge.
type Customer struct {
	ID             string
	Name           string
	Phone          string
	TelegramChatID int64 // 0 when the customer has not linked a chat
}

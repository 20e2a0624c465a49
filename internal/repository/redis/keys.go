package redis

import "fmt"

const ns = "ogtix:v1"

func KeyOffers() string {
	return ns + ":catalog:offers"
}

func KeyEvents() string {
	return ns + ":catalog:events"
}

func KeyUserTickets(userID int64) string {
	return fmt.Sprintf("%s:user:%d:tickets", ns, userID)
}

func KeyIdemCheckout(userID int64, idemKey string) string {
	return fmt.Sprintf("%s:idem:checkout:%d:%s", ns, userID, idemKey)
}

func KeyIdemPayment(eventID string) string {
	return fmt.Sprintf("%s:idem:payment:%s", ns, eventID)
}

func ChannelOrdersPaid() string {
	return ns + ":orders:paid"
}

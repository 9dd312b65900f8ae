package enums

type CardStatus string

const (
	CardAvailable CardStatus = "available"
	CardPending   CardStatus = "pending"
)

func (s CardStatus) Valid() bool {
	return s == CardAvailable || s == CardPending
}

func (s CardStatus) String() string {
	return string(s)
}

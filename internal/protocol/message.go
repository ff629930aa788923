package protocol

// Message is one chat line, public or private. Recipient is a channel name
// (starting with '#') or a user name.
type Message struct {
	Sender    string
	Text      string
	Recipient string
	SenderID  int32
}

// DecodeMessage reads a chat message.
func DecodeMessage(p *Packet) Message {
	return Message{
		Sender:    p.ReadString(),
		Text:      p.ReadString(),
		Recipient: p.ReadString(),
		SenderID:  p.ReadI32(),
	}
}

// Encode writes the message in DecodeMessage's field order.
func (m *Message) Encode(b *Builder) {
	b.WriteString(m.Sender)
	b.WriteString(m.Text)
	b.WriteString(m.Recipient)
	b.WriteI32(m.SenderID)
}

// Channel is a chat channel advertised by the server.
type Channel struct {
	Name      string
	Topic     string
	NbMembers uint16
}

// DecodeChannel reads a channel info record.
func DecodeChannel(p *Packet) Channel {
	return Channel{
		Name:      p.ReadString(),
		Topic:     p.ReadString(),
		NbMembers: p.ReadU16(),
	}
}

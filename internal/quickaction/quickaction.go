// Package quickaction resolves the parameter-free quick-reply buttons to their canned answers.
package quickaction

// Action keys accepted by Resolve.
const (
	Products   = "products"
	Promotions = "promotions"
	Services   = "services"
	Contact    = "contact"
	Hours      = "hours"
)

// Unavailable is returned by Resolve for keys outside the known set.
const Unavailable = "Maaf, aksi tersebut tidak tersedia."

// Action describes one quick-reply button.
type Action struct {
	Key   string
	Label string
	// Utterance is the customer-side message appended to the transcript when the button is pressed.
	Utterance string
	Response  string
}

var actions = []Action{
	{
		Key:       Products,
		Label:     "🛍️ Produk",
		Utterance: "Tanya tentang produk",
		Response: "Kami memiliki berbagai produk seperti elektronik, fashion, makanan, dan rumah tangga. " +
			"Produk apa yang ingin Anda ketahui lebih lanjut?",
	},
	{
		Key:       Promotions,
		Label:     "🎉 Promo",
		Utterance: "Tanya tentang promo",
		Response: "Saat ini kami memiliki beberapa promo menarik:\n" +
			"• Diskon 20% untuk member\n" +
			"• Buy 2 Get 1 Free\n" +
			"• Free ongkir untuk pembelian di atas 500k\n" +
			"• Cashback 10% untuk pembayaran digital",
	},
	{
		Key:       Services,
		Label:     "🔧 Layanan",
		Utterance: "Tanya tentang layanan",
		Response: "Layanan yang kami sediakan:\n" +
			"• Pembelian Online\n" +
			"• Pengiriman\n" +
			"• Return & Refund\n" +
			"• Garansi\n" +
			"• Customer Support 24/7",
	},
	{
		Key:       Contact,
		Label:     "📞 Kontak",
		Utterance: "Tanya tentang kontak",
		Response: "Anda dapat menghubungi kami melalui:\n" +
			"• WhatsApp: 0812-3456-7890\n" +
			"• Email: cs@retailstore.com\n" +
			"• Call Center: 1500-123",
	},
	{
		Key:       Hours,
		Label:     "🕒 Jam Buka",
		Utterance: "Tanya tentang jam buka",
		Response: "Jam operasional kami:\n" +
			"• Senin-Jumat: 09:00-22:00\n" +
			"• Sabtu-Minggu: 10:00-21:00\n" +
			"• Hari Libur: 10:00-20:00",
	},
}

// Actions returns the quick-reply buttons in display order.
func Actions() []Action {
	as := make([]Action, len(actions))
	copy(as, actions)
	return as
}

// Lookup returns the action registered under key.
func Lookup(key string) (Action, bool) {
	for _, a := range actions {
		if a.Key == key {
			return a, true
		}
	}
	return Action{}, false
}

// Resolve returns the canned answer for key. Unknown keys degrade to Unavailable instead of failing.
func Resolve(key string) string {
	a, ok := Lookup(key)
	if !ok {
		return Unavailable
	}
	return a.Response
}

// Utterance returns the customer-side message for key.
func Utterance(key string) string {
	a, ok := Lookup(key)
	if !ok {
		return "Tanya tentang " + key
	}
	return a.Utterance
}

// Package chattext holds the guest-facing WhatsApp texts. Guests are
// addressed in Indonesian.
package chattext

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// EndCommand closes the conversation when sent by the guest.
const EndCommand = "/end"

const AutoReply = "Terima kasih atas pesan Anda. 🙏\n\n" +
	"Tim kami akan segera merespons pertanyaan Anda. " +
	"Mohon menunggu sebentar.\n\n" +
	"Waktu respon normal: 5-10 menit"

const Goodbye = "Terima kasih telah menghubungi kami! 👋\n\n" +
	"Sesi percakapan telah berakhir.\n" +
	"Silakan kirim pesan baru jika Anda membutuhkan bantuan lagi.\n\n" +
	"Sampai jumpa! 🏨"

var titleCaser = cases.Title(language.Indonesian)

// Welcome greets a guest at the start of a new session.
func Welcome(guestName string) string {
	name := strings.TrimSpace(guestName)
	if name == "" {
		name = "Tamu"
	}
	return fmt.Sprintf("Halo %s! 👋\n\n"+
		"Selamat datang kembali! Kami siap membantu Anda.\n\n"+
		"Silakan kirim pertanyaan atau permintaan Anda.\n"+
		"Ketik `%s` untuk mengakhiri percakapan.\n\n"+
		"Terima kasih! 🏨", titleCaser.String(name), EndCommand)
}

// IsEndCommand reports whether text asks to close the session.
func IsEndCommand(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), EndCommand)
}

// Label turns identifiers such as "room_service" into "Room Service".
func Label(identifier string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(identifier, "_", " "))
}

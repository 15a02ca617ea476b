package catalog

// Tip returns the insider advisory shown at topic selection.
// Countries without a specific entry get a generic reminder; the function
// never fails.
func Tip(c Country) string {
	switch c {
	case CountryUAE:
		return "💡 *Insider Scoop:* The UAE is a global melting pot.\n😎 *Pro Tip:* You have creative freedom! 'Fireworks' over Burj Khalifa or 'Abstract Gold' are perfect — but keep it secular."
	case CountryKSA:
		return "💡 *Insider Scoop:* It's 'Kashta' Time! The desert is their winter wonderland.\n😎 *Pro Tip:* Impress them with 'Desert Starlight'. Coffee pots? Yes. Champagne? NEVER."
	case CountryQatar:
		return "💡 *Insider Scoop:* The 'Maroon' Elegance.\n😎 *Pro Tip:* Skip generic Red. Use 'Abstract' or themes with Maroon & White to blend with National Day pride."
	case CountryKuwait:
		return "💡 *Insider Scoop:* A quiet winter break.\n😎 *Pro Tip:* Choose 'Desert Starlight' or peaceful themes. It respects their privacy and family time."
	case CountryBahrain:
		return "💡 *Insider Scoop:* The Island Vibe.\n😎 *Pro Tip:* Friendly and open! 'Fireworks' or 'Skylines' (World Trade Center) work perfectly."
	case CountryOman:
		return "💡 *Insider Scoop:* Serenity over noise.\n😎 *Pro Tip:* Avoid the bling. Choose 'Desert Starlight' or Nature themes. Respect the Omani soul."
	default:
		return "💡 *Tip:* Remember the Golden Rule of GCC: Be respectful, avoid alcohol imagery, and focus on shared values like prosperity, light, and warmth."
	}
}

package regions

// builtin is the World Bank regional grouping used when no regions file is
// configured. Order is significant: it drives Names and the /regions listing.
var builtin = []Region{
	{
		Name: "Latin America & Caribbean",
		Countries: []string{
			"Mexico", "Belize", "Guatemala", "Honduras", "El Salvador", "Nicaragua",
			"Costa Rica", "Panama", "Colombia", "Venezuela", "Ecuador", "Peru",
			"Brazil", "Bolivia", "Paraguay", "Chile", "Argentina", "Uruguay",
			"The Bahamas", "Barbados", "Cuba", "Dominican Republic", "Grenada",
			"Haiti", "Jamaica", "Saint Kitts and Nevis", "Saint Lucia",
			"Saint Vincent and the Grenadines", "Suriname", "Trinidad and Tobago", "Guyana",
		},
	},
	{
		Name: "Europe & Central Asia",
		Countries: []string{
			"Albania", "Andorra", "Armenia", "Austria", "Azerbaijan", "Belarus",
			"Belgium", "Bosnia and Herzegovina", "Bulgaria", "Croatia", "Cyprus",
			"Czech Republic", "Denmark", "Estonia", "Finland", "France", "Georgia",
			"Germany", "Greece", "Hungary", "Iceland", "Ireland", "Italy",
			"Kazakhstan", "Kosovo", "Kyrgyzstan", "Latvia", "Liechtenstein",
			"Lithuania", "Luxembourg", "Malta", "Moldova", "Monaco", "Montenegro",
			"Netherlands", "North Macedonia", "Norway", "Poland", "Portugal",
			"Romania", "Russia", "San Marino", "Serbia", "Slovakia", "Slovenia",
			"Spain", "Sweden", "Switzerland", "Tajikistan", "Turkey", "Turkmenistan",
			"Ukraine", "United Kingdom", "Uzbekistan",
		},
	},
	{
		Name: "Middle East & North Africa",
		Countries: []string{
			"Algeria", "Bahrain", "Djibouti", "Egypt", "Iran", "Iraq", "Israel",
			"Jordan", "Kuwait", "Lebanon", "Libya", "Malta", "Morocco", "Oman",
			"Qatar", "Saudi Arabia", "Syria", "Tunisia", "United Arab Emirates",
			"West Bank and Gaza", "Yemen",
		},
	},
	{
		Name: "Sub-Saharan Africa",
		Countries: []string{
			"Angola", "Benin", "Botswana", "Burkina Faso", "Burundi", "Cabo Verde",
			"Cameroon", "Central African Republic", "Chad", "Comoros", "Congo",
			"Democratic Republic of the Congo", "Côte d'Ivoire", "Equatorial Guinea",
			"Eritrea", "Eswatini", "Ethiopia", "Gabon", "Gambia", "Ghana", "Guinea",
			"Guinea-Bissau", "Kenya", "Lesotho", "Liberia", "Madagascar", "Malawi",
			"Mali", "Mauritania", "Mauritius", "Mozambique", "Namibia", "Niger",
			"Nigeria", "Rwanda", "Sao Tome and Principe", "Senegal", "Seychelles",
			"Sierra Leone", "Somalia", "South Africa", "South Sudan", "Sudan",
			"Togo", "Uganda", "Tanzania", "Zambia", "Zimbabwe",
		},
	},
	{
		Name: "East Asia & Pacific",
		Countries: []string{
			"Australia", "Brunei Darussalam", "Cambodia", "China", "Fiji",
			"Indonesia", "Japan", "Kiribati", "Lao PDR", "Malaysia",
			"Marshall Islands", "Micronesia", "Mongolia", "Myanmar", "Nauru",
			"New Zealand", "Palau", "Papua New Guinea", "Philippines",
			"Republic of Korea", "Samoa", "Singapore", "Solomon Islands",
			"Thailand", "Timor-Leste", "Tonga", "Tuvalu", "Vanuatu", "Vietnam",
			"Hong Kong SAR, China", "Macao SAR, China",
		},
	},
	{
		Name: "South Asia",
		Countries: []string{
			"Afghanistan", "Bangladesh", "Bhutan", "India", "Maldives",
			"Nepal", "Pakistan", "Sri Lanka",
		},
	},
}

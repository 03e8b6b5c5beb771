package source

import "strings"

// countryCities lists the cities a cascade search iterates over per
// country, largest first. Covering the big cities first keeps early
// exits cheap for small orders while still reaching deep into the long
// tail for large ones.
var countryCities = map[string][]string{
	"IT": {
		"Milano", "Roma", "Napoli", "Torino", "Palermo", "Genova", "Bologna",
		"Firenze", "Bari", "Catania", "Venezia", "Verona", "Messina", "Padova",
		"Trieste", "Brescia", "Parma", "Taranto", "Prato", "Modena", "Reggio Calabria",
		"Reggio Emilia", "Perugia", "Ravenna", "Livorno", "Cagliari", "Foggia",
		"Rimini", "Salerno", "Ferrara", "Sassari", "Latina", "Giugliano",
		"Monza", "Siracusa", "Pescara", "Bergamo", "Forlì", "Trento", "Vicenza",
		"Terni", "Bolzano", "Novara", "Piacenza", "Ancona", "Andria", "Arezzo",
		"Udine", "Cesena", "Lecce", "Pesaro", "Barletta", "Alessandria",
		"La Spezia", "Pistoia", "Pisa", "Catanzaro", "Lucca", "Como",
		"Grosseto", "Varese", "Caserta", "Asti", "Ragusa", "Cremona", "Cosenza",
		"Massa", "Potenza", "Trapani", "Viterbo", "Crotone", "Cuneo", "Benevento",
		"Avellino", "Matera", "Agrigento", "Teramo", "Pordenone", "Savona",
	},
	"DE": {
		"Berlin", "Hamburg", "München", "Köln", "Frankfurt am Main", "Stuttgart",
		"Düsseldorf", "Leipzig", "Dortmund", "Essen", "Bremen", "Dresden",
		"Hannover", "Nürnberg", "Duisburg", "Bochum", "Wuppertal", "Bielefeld",
		"Bonn", "Münster", "Mannheim", "Karlsruhe", "Augsburg", "Wiesbaden",
		"Mönchengladbach", "Gelsenkirchen", "Aachen", "Braunschweig", "Kiel",
		"Chemnitz", "Halle", "Magdeburg", "Freiburg", "Krefeld", "Mainz",
		"Lübeck", "Erfurt", "Oberhausen", "Rostock", "Kassel", "Hagen",
		"Potsdam", "Saarbrücken", "Hamm", "Ludwigshafen", "Oldenburg", "Mülheim",
		"Osnabrück", "Leverkusen", "Heidelberg", "Solingen", "Darmstadt",
		"Herne", "Neuss", "Regensburg", "Paderborn", "Ingolstadt", "Offenbach",
		"Würzburg", "Fürth", "Ulm", "Heilbronn", "Pforzheim", "Wolfsburg",
		"Göttingen", "Bottrop", "Reutlingen", "Koblenz", "Bremerhaven",
		"Remscheid", "Bergisch Gladbach", "Trier", "Jena", "Erlangen",
	},
	"AT": {
		"Wien", "Graz", "Linz", "Salzburg", "Innsbruck",
		"Klagenfurt", "Villach", "Wels", "Sankt Pölten", "Dornbirn",
		"Wiener Neustadt", "Steyr", "Feldkirch", "Bregenz", "Leonding",
		"Klosterneuburg", "Baden", "Leoben", "Traun", "Krems an der Donau",
		"Amstetten", "Lustenau", "Kapfenberg", "Mödling", "Hallein",
		"Braunau am Inn", "Kufstein", "Schwechat", "Traiskirchen", "Tulln",
	},
	"CH": {
		"Zürich", "Genf", "Basel", "Bern", "Lausanne", "Winterthur",
		"Luzern", "St. Gallen", "Lugano", "Biel", "Thun", "Köniz",
		"La Chaux-de-Fonds", "Fribourg", "Schaffhausen", "Chur", "Neuchâtel",
		"Vernier", "Uster", "Sion", "Lancy", "Emmen", "Yverdon-les-Bains",
		"Zug", "Kriens", "Rapperswil-Jona", "Dübendorf", "Montreux",
	},
	"FR": {
		"Paris", "Marseille", "Lyon", "Toulouse", "Nice", "Nantes", "Strasbourg",
		"Montpellier", "Bordeaux", "Lille", "Rennes", "Reims", "Saint-Étienne",
		"Le Havre", "Toulon", "Grenoble", "Dijon", "Angers", "Nîmes", "Villeurbanne",
		"Clermont-Ferrand", "Le Mans", "Aix-en-Provence", "Brest", "Tours",
		"Amiens", "Limoges", "Annecy", "Perpignan", "Boulogne-Billancourt",
		"Metz", "Besançon", "Orléans", "Rouen", "Mulhouse", "Caen", "Nancy",
		"Saint-Denis", "Argenteuil", "Montreuil", "Roubaix", "Tourcoing",
	},
	"ES": {
		"Madrid", "Barcelona", "Valencia", "Sevilla", "Zaragoza", "Málaga",
		"Murcia", "Palma", "Las Palmas", "Bilbao", "Alicante", "Córdoba",
		"Valladolid", "Vigo", "Gijón", "L'Hospitalet", "A Coruña", "Vitoria",
		"Granada", "Elche", "Oviedo", "Badalona", "Cartagena", "Terrassa",
		"Jerez", "Sabadell", "Móstoles", "Santa Cruz", "Pamplona", "Almería",
		"Alcalá", "Fuenlabrada", "Leganés", "San Sebastián", "Getafe", "Burgos",
		"Albacete", "Santander", "Castellón", "Alcorcón", "San Cristóbal",
	},
}

// CitiesForCountry returns the city list for a country code, or nil for
// countries without a curated list.
func CitiesForCountry(country string) []string {
	return countryCities[strings.ToUpper(country)]
}

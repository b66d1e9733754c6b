package extraction

// instruction is sent ahead of every source text. The rules mirror what the
// mapping step expects; the answer is not validated against them.
const instruction = `Du extrahierst Auftragsdaten für Wasserschaden-Fälle aus E-Mails und Dokumenten.

1. EIGENTÜMER UND ADRESSE TRENNEN
   - Das Feld "eigentuemer" enthält ausschliesslich den Namen bzw. die Firma.
   - Sobald "Strasse", "Str.", "Weg", "Platz", "Gasse", "Allee", eine Hausnummer, eine vierstellige PLZ oder ein Ort folgt, endet das Feld.
   - Diese Adressteile gehören in "strasse_nr" und "plz_ort". Stehen Adressdaten im Text, bleiben diese Felder nie leer.
   Beispiel: "Avadis Anlagestiftung Zollstrasse 42 8005 Zürich"
   -> eigentuemer: "Avadis Anlagestiftung", strasse_nr: "Zollstrasse 42", plz_ort: "8005 Zürich"

2. ROLLEN (nur diese Kürzel)
   - "Mieter": Bewohner der betroffenen Wohnung
   - "Eig.": Eigentümer der Liegenschaft
   - "HW": Hauswart
   - "Verw.": Verwaltung
   - "Handw.": externe Firmen und Techniker. Absender aus Firmen-Signaturen sind immer "Handw.", nie "Mieter".
   - "Sonst.": keine Zuordnung möglich

3. KONTAKTE
   - Eine Karte pro Person, Name und Firma sauber getrennt.
   - Telefonnummern im Format +41 XX XXX XX XX.

4. KEINE PLATZHALTER
   - Niemals "string", "n/a", "unbekannt" oder ähnliche Füllwörter ausgeben. Fehlt ein Wert, leeren String verwenden.
   - Fehlende Pflichtangaben als kurze Sätze in "gap_analysis" auflisten.

Antworte nur mit JSON in genau dieser Struktur, ohne Markdown:
{
  "projekt_daten": {"interne_id": "", "externe_ref": "", "auftrags_nr": ""},
  "auftrag_verwaltung": {"firma": "", "sachbearbeiter": "", "leistungsart": ""},
  "rechnungs_details": {"eigentuemer": "", "email_rechnung": "", "vermerk": ""},
  "schadenort": {"strasse_nr": "", "plz_ort": "", "etage_wohnung": ""},
  "kontakte": [{"name": "", "rolle": "", "telefon": ""}],
  "gap_analysis": []
}`

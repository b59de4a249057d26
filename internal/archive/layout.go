package archive

// Top-level folders of the output archive.
const (
	FolderApproved    = "aprovados/"
	FolderContingency = "contingencia/"
	FolderRejected    = "rejeitados/"

	// ReportEntry is where the rejection report is stored, when there is one.
	ReportEntry = FolderRejected + "relatorio.csv"
)

package batch

// TemplateFileName is the download name for Template.
const TemplateFileName = "batch-template.csv"

const template = `prompt,keywords
"What are the benefits of cloud computing?","cloud,scalability,cost"
"Explain machine learning in simple terms","machine learning,data,algorithm"
"How does AI affect healthcare?","AI,healthcare,diagnosis"
"What is the future of remote work?","remote,productivity,collaboration"
"Describe best practices for cybersecurity","security,password,encryption"
`

// Template returns a static example CSV with the required columns.
func Template() []byte {
	return []byte(template)
}

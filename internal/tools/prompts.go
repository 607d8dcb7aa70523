package tools

import "fmt"

const chartToolDesc = "Use this to provide instructions to generate a chart. The instructions must be clear and concise. All relevant numbers and calculations must be provided. If the chart is generated successfully, return value will be 'Image saved'. If the chart is not generated, return value will be the error message."

const fileAnalysisToolDesc = "Use this tool to analyze a file with a given objective. If the file is not parsed correctly, it will return an error message."

const calculatorToolDesc = "Use this tool to calculate financial metrics."

func chartSystemMessage(imagesDir string) string {
	return fmt.Sprintf(`You are a helpful AI assistant, collaborating with other assistants. Your job is to generate a chart based on the instructions provided. Use your tools to generate the chart.

Use a non-interactive backend, for example matplotlib.use('Agg'). Do not view the chart and do not start a Matplotlib GUI.

Save the image to the '%s' folder with an appropriate name. Add citation to chart if present. Attempt at least 2 times to generate the chart.

If you are unable to generate the chart, provide the error message. If you are able to generate the chart and save the image, return Image saved.`, imagesDir)
}

const fileAnalysisSystemMessage = "You are a helpful AI. You will be given a file path. Your job is to analyze the file to achieve the objective. Use your tools to achieve the objective. Be as precise as possible when analyzing the file. Always cite what information you've used and what process you've followed to get the result. If you're making assumptions, state and justify them. If you're dealing with an excel file with a high volume of numerical data, calculate this using the financial calculator."

const calculatorSystemMessage = `You are a helpful AI that specializes in financial analysis. Your job is to calculate a financial metric. You will be given a file. Use your tools to get the content of the file and perform any calculations needed.

Always cite what information you've used. Always outline the process you've followed to get the result. If you're making assumptions, state and justify them.

If you're dealing with an excel file with a high volume of numerical data, use the python_repl tool to read and analyze the data.`

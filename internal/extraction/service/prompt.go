package service

const invoicePrompt = `Extract the following information from this invoice document and answer with a single JSON object:
{
  "invoice_number": "string",
  "invoice_date": "YYYY-MM-DD",
  "due_date": "YYYY-MM-DD",
  "vendor_name": "string",
  "vendor_address": "string",
  "total_amount": "decimal",
  "tax_amount": "decimal",
  "subtotal": "decimal",
  "line_items": [
    {
      "description": "string",
      "quantity": "decimal",
      "unit_price": "decimal",
      "total_amount": "decimal",
      "tax_rate": "decimal",
      "tax_amount": "decimal"
    }
  ]
}
Use null for fields that do not appear in the document.`
